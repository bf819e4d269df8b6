package store

import (
	"MigraScope/internal/model"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func testRun(name string, createdAt time.Time) *model.Run {
	run := model.NewRun(name, "table:"+name+".csv", &model.AnalysisResult{
		TotalPackets:         3,
		TotalBytes:           3000000,
		UniqueIPs:            2,
		ProtocolDistribution: []model.ProtocolCount{{Protocol: 6, Packets: 3}},
		TrafficByBucket:      []model.BucketTotal{{Start: createdAt.Truncate(time.Minute), Bytes: 3000000}},
		BucketWidth:          time.Minute,
		PeakBucketBytes:      3000000,
		MeanBucketBytes:      3000000,
		Indicators:           model.MigrationIndicators{HighBandwidth: true},
	})
	run.CreatedAt = createdAt
	return run
}

func TestHistory_PutGet(t *testing.T) {
	h := openTestHistory(t)
	run := testRun("vm-01", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, h.Put(run))

	got, err := h.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "vm-01", got.Name)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, run.Result.TotalBytes, got.Result.TotalBytes)
	assert.Equal(t, run.Result.ProtocolDistribution, got.Result.ProtocolDistribution)
	assert.True(t, got.Result.Indicators.HighBandwidth)
}

func TestHistory_GetMissing(t *testing.T) {
	h := openTestHistory(t)
	_, err := h.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestHistory_ListNewestFirst(t *testing.T) {
	h := openTestHistory(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	older := testRun("older", base)
	newest := testRun("newest", base.Add(2*time.Hour))
	middle := testRun("middle", base.Add(time.Hour))
	for _, run := range []*model.Run{older, newest, middle} {
		require.NoError(t, h.Put(run))
	}

	runs, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"newest", "middle", "older"}, []string{runs[0].Name, runs[1].Name, runs[2].Name})

	runs, err = h.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newest", runs[0].Name)
}

func TestHistory_PutReplaces(t *testing.T) {
	h := openTestHistory(t)
	run := testRun("vm-01", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, h.Put(run))

	run.Name = "vm-01-renamed"
	run.CreatedAt = run.CreatedAt.Add(time.Minute)
	require.NoError(t, h.Put(run))

	runs, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "vm-01-renamed", runs[0].Name)
}

func TestHistory_Empty(t *testing.T) {
	h := openTestHistory(t)
	runs, err := h.List(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
