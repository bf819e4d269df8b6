package analyzer

import (
	"MigraScope/internal/model"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultBucketWidth is the granularity of the traffic volume series.
const DefaultBucketWidth = time.Minute

// Migration heuristics.
const (
	HighBandwidthBytes     int64 = 1000000 // bytes within a single bucket
	ConsistencyRatio             = 0.5     // stddev must stay below this fraction of the mean
	LongDurationThreshold        = 30 * time.Second
)

// ErrInvalidRecord is returned when a record violates the packet record invariants.
var ErrInvalidRecord = errors.New("invalid packet record")

// Analyzer computes traffic statistics and migration indicators over a record set.
// It holds no state between calls and is safe for concurrent use.
type Analyzer struct {
	bucketWidth time.Duration
}

// New creates an analyzer that groups traffic into buckets of the given width.
// A non-positive width falls back to DefaultBucketWidth.
func New(bucketWidth time.Duration) *Analyzer {
	if bucketWidth <= 0 {
		bucketWidth = DefaultBucketWidth
	}
	return &Analyzer{bucketWidth: bucketWidth}
}

// BucketWidth returns the configured bucket width.
func (a *Analyzer) BucketWidth() time.Duration {
	return a.bucketWidth
}

// Analyze runs the analysis with one-minute buckets.
func Analyze(records []model.PacketRecord) (*model.AnalysisResult, error) {
	return New(DefaultBucketWidth).Analyze(records)
}

// Analyze computes an AnalysisResult in a single pass over records.
// It fails as a whole if any record is invalid.
func (a *Analyzer) Analyze(records []model.PacketRecord) (*model.AnalysisResult, error) {
	result := &model.AnalysisResult{
		TotalPackets:         len(records),
		BucketWidth:          a.bucketWidth,
		ProtocolDistribution: []model.ProtocolCount{},
		TrafficByBucket:      []model.BucketTotal{},
	}
	if len(records) == 0 {
		return result, nil
	}

	ips := make(map[string]struct{})
	protocols := make(map[uint8]int)
	buckets := make(map[int64]int64) // bucket start (unix nanos) -> bytes

	first, last := records[0].Timestamp, records[0].Timestamp
	for i, rec := range records {
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		result.TotalBytes += int64(rec.Length)
		ips[rec.SrcIP] = struct{}{}
		ips[rec.DstIP] = struct{}{}
		protocols[rec.Protocol]++

		start := rec.Timestamp.Truncate(a.bucketWidth)
		buckets[start.UnixNano()] += int64(rec.Length)

		if rec.Timestamp.Before(first) {
			first = rec.Timestamp
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
	}

	result.UniqueIPs = len(ips)
	result.FirstSeen = first.UTC()
	result.LastSeen = last.UTC()
	result.Duration = last.Sub(first)
	result.ProtocolDistribution = protocolDistribution(protocols)
	result.TrafficByBucket = bucketSeries(buckets)

	volumes := make([]int64, len(result.TrafficByBucket))
	for i, b := range result.TrafficByBucket {
		volumes[i] = b.Bytes
	}
	mean, peak, stdDev := distributionStats(volumes)
	result.MeanBucketBytes = mean
	result.PeakBucketBytes = peak
	result.StdDevBucketBytes = stdDev

	result.Indicators = model.MigrationIndicators{
		HighBandwidth:     peak > HighBandwidthBytes,
		ConsistentTraffic: stdDev < mean*ConsistencyRatio,
		LongDuration:      result.Duration > LongDurationThreshold,
	}
	return result, nil
}

func validate(rec model.PacketRecord) error {
	switch {
	case rec.Length < 0:
		return fmt.Errorf("%w: negative length %d", ErrInvalidRecord, rec.Length)
	case rec.SrcIP == "":
		return fmt.Errorf("%w: missing source address", ErrInvalidRecord)
	case rec.DstIP == "":
		return fmt.Errorf("%w: missing destination address", ErrInvalidRecord)
	case rec.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	return nil
}

func protocolDistribution(counts map[uint8]int) []model.ProtocolCount {
	dist := make([]model.ProtocolCount, 0, len(counts))
	for proto, n := range counts {
		dist = append(dist, model.ProtocolCount{Protocol: proto, Packets: n})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Packets != dist[j].Packets {
			return dist[i].Packets > dist[j].Packets
		}
		return dist[i].Protocol < dist[j].Protocol
	})
	return dist
}

func bucketSeries(buckets map[int64]int64) []model.BucketTotal {
	series := make([]model.BucketTotal, 0, len(buckets))
	for start, bytes := range buckets {
		series = append(series, model.BucketTotal{Start: time.Unix(0, start).UTC(), Bytes: bytes})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Start.Before(series[j].Start)
	})
	return series
}
