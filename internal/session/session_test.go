package session

import (
	"MigraScope/internal/analyzer"
	"MigraScope/internal/config"
	"MigraScope/internal/logging"
	"MigraScope/internal/model"
	"MigraScope/internal/store"
	"MigraScope/internal/table"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	records []model.PacketRecord
	err     error
}

func (s staticSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	return s.records, s.err
}

func (s staticSource) String() string { return "static" }

type blockingSource struct{}

func (blockingSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) String() string { return "blocking" }

// untilDoneSource collects until ctx ends and then returns what it has.
type untilDoneSource struct {
	records []model.PacketRecord
}

func (s untilDoneSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)
	return s.records, nil
}

func (untilDoneSource) String() string { return "until-done" }

type recordingWriter struct {
	mu   sync.Mutex
	runs []*model.Run
	err  error
}

func (w *recordingWriter) Write(run *model.Run) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs = append(w.runs, run)
	return w.err
}

func (w *recordingWriter) Name() string { return "recording" }

func migrationRecords() []model.PacketRecord {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.PacketRecord{
		{Timestamp: base, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Protocol: 6, Length: 1000000, TTL: 64},
		{Timestamp: base.Add(time.Second), SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Protocol: 6, Length: 1000000, TTL: 64},
		{Timestamp: base.Add(2 * time.Second), SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: 6, Length: 1000000, TTL: 64},
	}
}

func TestRun_WritesToAllWriters(t *testing.T) {
	w1, w2 := &recordingWriter{}, &recordingWriter{}
	s := NewWith(analyzer.New(time.Minute), []model.Writer{w1, w2}, nil, logging.Discard())

	run, err := s.Run(context.Background(), "vm-01", staticSource{records: migrationRecords()})
	require.NoError(t, err)
	assert.Equal(t, "vm-01", run.Name)
	assert.Equal(t, "static", run.Source)
	assert.Equal(t, int64(3000000), run.Result.TotalBytes)
	assert.True(t, run.Result.Indicators.HighBandwidth)

	require.Len(t, w1.runs, 1)
	require.Len(t, w2.runs, 1)
	assert.Same(t, run, w1.runs[0])
}

func TestRun_SourceError(t *testing.T) {
	w := &recordingWriter{}
	s := NewWith(analyzer.New(time.Minute), []model.Writer{w}, nil, logging.Discard())

	sourceErr := errors.New("interface down")
	run, err := s.Run(context.Background(), "vm-01", staticSource{err: sourceErr})
	assert.ErrorIs(t, err, sourceErr)
	assert.Nil(t, run)
	assert.Empty(t, w.runs)
}

func TestRun_InvalidRecord(t *testing.T) {
	w := &recordingWriter{}
	s := NewWith(analyzer.New(time.Minute), []model.Writer{w}, nil, logging.Discard())

	records := migrationRecords()
	records[1].Length = -1
	run, err := s.Run(context.Background(), "vm-01", staticSource{records: records})
	assert.ErrorIs(t, err, analyzer.ErrInvalidRecord)
	assert.Nil(t, run)
	assert.Empty(t, w.runs)
}

func TestRun_WriterErrorKeepsResult(t *testing.T) {
	ok := &recordingWriter{}
	failing := &recordingWriter{err: errors.New("disk full")}
	s := NewWith(analyzer.New(time.Minute), []model.Writer{failing, ok}, nil, logging.Discard())

	run, err := s.Run(context.Background(), "vm-01", staticSource{records: migrationRecords()})
	assert.ErrorIs(t, err, ErrWrite)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.Result.TotalPackets)
	assert.Len(t, ok.runs, 1)
}

func TestRun_Cancelled(t *testing.T) {
	s := NewWith(analyzer.New(time.Minute), nil, nil, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	run, err := s.Run(ctx, "vm-01", blockingSource{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, run)
}

func TestRun_SourceEndingAtCancellation(t *testing.T) {
	w := &recordingWriter{}
	s := NewWith(analyzer.New(time.Minute), []model.Writer{w}, nil, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	run, err := s.Run(ctx, "vm-01", untilDoneSource{records: migrationRecords()[:1]})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.Result.TotalPackets)
	assert.Equal(t, "until-done", run.Source)
	require.Len(t, w.runs, 1)
}

func TestRun_StoresHistory(t *testing.T) {
	history, err := store.OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	s := NewWith(analyzer.New(time.Minute), nil, history, logging.Discard())
	defer s.Close()

	run, err := s.Run(context.Background(), "vm-01", staticSource{records: migrationRecords()})
	require.NoError(t, err)

	stored, err := s.History().Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Result.TotalBytes, stored.Result.TotalBytes)
}

func TestNew_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Report.RootPath = filepath.Join(dir, "reports")
	cfg.Report.Writers = []string{"text", "json"}
	cfg.History.Path = filepath.Join(dir, "history.db")

	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	defer s.Close()

	tablePath := filepath.Join(dir, "capture.csv")
	require.NoError(t, table.Save(tablePath, migrationRecords()))

	run, err := s.Run(context.Background(), "vm-01", table.FileSource{Path: tablePath})
	require.NoError(t, err)
	assert.Equal(t, "table:"+tablePath, run.Source)

	for _, name := range []string{"vm-01.txt", "vm-01.json"} {
		_, err := os.Stat(filepath.Join(cfg.Report.RootPath, name))
		assert.NoError(t, err, name)
	}
	runs, err := s.History().List(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNew_UnknownWriter(t *testing.T) {
	cfg := config.Default()
	cfg.Report.Writers = []string{"parquet"}
	_, err := New(cfg, logging.Discard())
	assert.Error(t, err)
}
