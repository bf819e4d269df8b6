package model

import (
	"time"

	"github.com/google/uuid"
)

// PacketRecord holds the IP-layer metadata of a single observed packet.
// Records are never mutated once captured.
type PacketRecord struct {
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	Protocol  uint8 // IP protocol number, e.g. 6 for TCP, 17 for UDP
	Length    int   // bytes on the wire
	TTL       uint8 // hop limit for IPv6
}

// ProtocolCount is the number of packets seen for one IP protocol number.
type ProtocolCount struct {
	Protocol uint8 `json:"protocol"`
	Packets  int   `json:"packets"`
}

// BucketTotal is the byte volume of a fixed-width time interval.
type BucketTotal struct {
	Start time.Time `json:"start"`
	Bytes int64     `json:"bytes"`
}

// MigrationIndicators are the heuristics that suggest live VM migration traffic.
type MigrationIndicators struct {
	HighBandwidth     bool `json:"high_bandwidth"`
	ConsistentTraffic bool `json:"consistent_traffic"`
	LongDuration      bool `json:"long_duration"`
}

// AnalysisResult summarizes a finite set of packet records.
type AnalysisResult struct {
	TotalPackets int   `json:"total_packets"`
	TotalBytes   int64 `json:"total_bytes"`
	UniqueIPs    int   `json:"unique_ips"`

	// ProtocolDistribution is ordered by descending packet count, then by protocol number.
	ProtocolDistribution []ProtocolCount `json:"protocol_distribution"`

	// TrafficByBucket is ordered chronologically. Every record falls into exactly one bucket.
	TrafficByBucket []BucketTotal `json:"traffic_by_bucket"`
	BucketWidth     time.Duration `json:"bucket_width"`

	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Duration  time.Duration `json:"duration"`

	PeakBucketBytes   int64   `json:"peak_bucket_bytes"`
	MeanBucketBytes   float64 `json:"mean_bucket_bytes"`
	StdDevBucketBytes float64 `json:"stddev_bucket_bytes"`

	Indicators MigrationIndicators `json:"migration_indicators"`
}

// ProtocolCounts returns the protocol distribution as a map.
func (r *AnalysisResult) ProtocolCounts() map[uint8]int {
	counts := make(map[uint8]int, len(r.ProtocolDistribution))
	for _, pc := range r.ProtocolDistribution {
		counts[pc.Protocol] = pc.Packets
	}
	return counts
}

// Run is one stored analysis invocation.
type Run struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	Result    *AnalysisResult `json:"result"`
}

// NewRun wraps a result into a Run with a fresh ID.
func NewRun(name, source string, result *AnalysisResult) *Run {
	return &Run{
		ID:        uuid.New(),
		Name:      name,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Result:    result,
	}
}
