package store

import (
	"MigraScope/internal/factory"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickHouseWriter_Registered(t *testing.T) {
	assert.True(t, factory.Registered("clickhouse"))
}

func TestRunRow(t *testing.T) {
	run := testRun("vm-01", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	row := runRow(run)
	require.Len(t, row, 15)
	assert.Equal(t, run.ID, row[0])
	assert.Equal(t, "vm-01", row[1])
	assert.Equal(t, uint64(3), row[6])
	assert.Equal(t, uint64(3000000), row[7])
	assert.Equal(t, uint32(2), row[8])
	assert.Equal(t, true, row[12])
	assert.Equal(t, false, row[13])
}

func TestBucketRows(t *testing.T) {
	run := testRun("vm-01", time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC))
	rows := bucketRows(run)
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rows[0][1])
	assert.Equal(t, uint64(time.Minute), rows[0][2])
	assert.Equal(t, uint64(3000000), rows[0][3])
}

func TestBuildRunsQuery(t *testing.T) {
	query, args := buildRunsQuery(RunFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	query, args = buildRunsQuery(RunFilter{Name: "vm-01", Since: since, Limit: 5})
	assert.Contains(t, query, "WHERE Name = ? AND CreatedAt >= ?")
	assert.Contains(t, query, "ORDER BY CreatedAt DESC LIMIT 5")
	assert.Equal(t, []interface{}{"vm-01", since}, args)
}
