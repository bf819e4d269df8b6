package store

import (
	"MigraScope/internal/config"
	"MigraScope/internal/factory"
	"MigraScope/internal/model"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("clickhouse", func(cfg *config.Config, logger *log.Logger) (model.Writer, error) {
		return NewClickHouseWriter(cfg.ClickHouse, logger)
	})
}

const createRunsTableStatement = `
CREATE TABLE IF NOT EXISTS migration_runs (
    RunID             UUID,
    Name              String,
    Source            String,
    CreatedAt         DateTime64(3),
    FirstSeen         DateTime64(9),
    LastSeen          DateTime64(9),
    TotalPackets      UInt64,
    TotalBytes        UInt64,
    UniqueIPs         UInt32,
    PeakBucketBytes   UInt64,
    MeanBucketBytes   Float64,
    StdDevBucketBytes Float64,
    HighBandwidth     Bool,
    ConsistentTraffic Bool,
    LongDuration      Bool
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(CreatedAt)
ORDER BY (Name, CreatedAt);
`

const createBucketsTableStatement = `
CREATE TABLE IF NOT EXISTS migration_buckets (
    RunID       UUID,
    BucketStart DateTime64(9),
    BucketWidth UInt64,
    Bytes       UInt64
) ENGINE = MergeTree()
ORDER BY (RunID, BucketStart);
`

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// ClickHouseWriter inserts run summaries and their bucket series into ClickHouse.
type ClickHouseWriter struct {
	conn   driver.Conn
	logger *log.Logger
}

// NewClickHouseWriter connects and makes sure both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, logger *log.Logger) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createRunsTableStatement, createBucketsTableStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	logger.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, logger: logger}, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

func runRow(run *model.Run) []interface{} {
	r := run.Result
	return []interface{}{
		run.ID,
		run.Name,
		run.Source,
		run.CreatedAt,
		r.FirstSeen,
		r.LastSeen,
		uint64(r.TotalPackets),
		uint64(r.TotalBytes),
		uint32(r.UniqueIPs),
		uint64(r.PeakBucketBytes),
		r.MeanBucketBytes,
		r.StdDevBucketBytes,
		r.Indicators.HighBandwidth,
		r.Indicators.ConsistentTraffic,
		r.Indicators.LongDuration,
	}
}

func bucketRows(run *model.Run) [][]interface{} {
	rows := make([][]interface{}, 0, len(run.Result.TrafficByBucket))
	for _, b := range run.Result.TrafficByBucket {
		rows = append(rows, []interface{}{run.ID, b.Start, uint64(run.Result.BucketWidth), uint64(b.Bytes)})
	}
	return rows
}

// Write inserts one row into migration_runs and one row per bucket into migration_buckets.
func (w *ClickHouseWriter) Write(run *model.Run) error {
	ctx := context.Background()

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO migration_runs")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := batch.Append(runRow(run)...); err != nil {
		return fmt.Errorf("failed to append run to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	rows := bucketRows(run)
	if len(rows) == 0 {
		return nil
	}
	batch, err = w.conn.PrepareBatch(ctx, "INSERT INTO migration_buckets")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append bucket to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.Infof("Wrote run '%s' with %d buckets to ClickHouse", run.Name, len(rows))
	return nil
}

// RunSummary is one row of migration_runs.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	TotalPackets uint64    `json:"total_packets"`
	TotalBytes   uint64    `json:"total_bytes"`
	Migration    bool      `json:"migration"`
}

// RunFilter narrows a QueryRuns call. Zero fields are ignored.
type RunFilter struct {
	Name  string
	Since time.Time
	Until time.Time
	Limit int
}

// Querier reads stored runs back from ClickHouse.
type Querier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (*Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &Querier{conn: conn}, nil
}

// Close closes the connection.
func (q *Querier) Close() error {
	return q.conn.Close()
}

// buildRunsQuery returns the SQL and positional arguments for filter.
func buildRunsQuery(filter RunFilter) (string, []interface{}) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			toString(RunID),
			Name,
			CreatedAt,
			TotalPackets,
			TotalBytes,
			HighBandwidth AND ConsistentTraffic AND LongDuration AS Migration
		FROM migration_runs`)

	var whereClauses []string
	args := []interface{}{}

	if filter.Name != "" {
		whereClauses = append(whereClauses, "Name = ?")
		args = append(args, filter.Name)
	}
	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "CreatedAt >= ?")
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		whereClauses = append(whereClauses, "CreatedAt <= ?")
		args = append(args, filter.Until)
	}

	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY CreatedAt DESC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}
	return queryBuilder.String(), args
}

// QueryRuns lists stored runs, newest first.
func (q *Querier) QueryRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query, args := buildRunsQuery(filter)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.Name, &s.CreatedAt, &s.TotalPackets, &s.TotalBytes, &s.Migration); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// BucketSeries returns the stored bucket totals of one run in chronological order.
func (q *Querier) BucketSeries(ctx context.Context, runID string) ([]model.BucketTotal, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT BucketStart, Bytes
		FROM migration_buckets
		WHERE RunID = toUUID(?)
		ORDER BY BucketStart`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	series := []model.BucketTotal{}
	for rows.Next() {
		var (
			start time.Time
			bytes uint64
		)
		if err := rows.Scan(&start, &bytes); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		series = append(series, model.BucketTotal{Start: start.UTC(), Bytes: int64(bytes)})
	}
	return series, rows.Err()
}
