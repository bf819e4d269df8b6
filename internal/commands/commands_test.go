package commands

import (
	"MigraScope/internal/model"
	"MigraScope/internal/store"
	"MigraScope/internal/table"
	"MigraScope/pkg/pcap"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func sampleRun() *model.Run {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.NewRun("vm-01", "table:vm-01.csv", &model.AnalysisResult{
		TotalPackets: 4,
		TotalBytes:   4000,
		TrafficByBucket: []model.BucketTotal{
			{Start: start, Bytes: 3000},
			{Start: start.Add(time.Minute), Bytes: 1000},
		},
		BucketWidth:       time.Minute,
		PeakBucketBytes:   3000,
		MeanBucketBytes:   2000,
		StdDevBucketBytes: 1000,
		Indicators:        model.MigrationIndicators{LongDuration: true},
	})
}

func TestSourceFor(t *testing.T) {
	assert.Equal(t, table.FileSource{Path: "a.csv"}, sourceFor("a.csv"))
	assert.Equal(t, table.FileSource{Path: "a.csv.gz"}, sourceFor("a.csv.gz"))
	assert.Equal(t, pcap.FileSource{Path: "a.pcap"}, sourceFor("a.pcap"))
	assert.Equal(t, pcap.FileSource{Path: "a.PCAPNG.gz"}, sourceFor("a.PCAPNG.gz"))
}

func TestRunName(t *testing.T) {
	assert.Equal(t, "vm-01", runName("captures/vm-01.pcap.gz"))
	assert.Equal(t, "traffic", runName("traffic.csv"))
	assert.Equal(t, "plain", runName("plain"))
}

func TestShowRunCsv(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, showRunCsv(&buf, sampleRun()))
	assert.Equal(t, "bucket_start,bytes\n2024-03-01T10:00:00Z,3000\n2024-03-01T10:01:00Z,1000\n", buf.String())
}

func TestShowRunReport(t *testing.T) {
	var buf bytes.Buffer
	showRunReport(&buf, sampleRun())
	out := buf.String()
	assert.Contains(t, out, "Peak 3,000 bytes, mean 2,000 bytes, std dev 1,000 bytes per 1m0s")
	assert.Contains(t, out, "2024-03-01T10:00:00Z")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "25.0%")
}

func TestShowHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	run := sampleRun()
	showHistoryTable(&buf, []*model.Run{run})
	out := buf.String()
	assert.Contains(t, out, run.ID.String())
	assert.Contains(t, out, "4,000")
	assert.Contains(t, out, "Yes")
	assert.Contains(t, out, "HIGH BW")
}

func TestShare(t *testing.T) {
	assert.Equal(t, "0.0%", share(10, 0))
	assert.Equal(t, "33.3%", share(1, 3))
}

func TestCommands(t *testing.T) {
	var names []string
	for _, c := range Commands() {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"analyze", "capture", "show", "history"}, names)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.db")
	reportDir := filepath.Join(dir, "reports")
	configPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("report:\n  root_path: %s\n  writers: [\"text\", \"json\"]\nhistory:\n  path: %s\nlog:\n  level: error\n", reportDir, historyPath)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tablePath := filepath.Join(dir, "vm-07.csv")
	require.NoError(t, table.Save(tablePath, []model.PacketRecord{
		{Timestamp: base, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Protocol: 6, Length: 1500, TTL: 64},
		{Timestamp: base.Add(time.Second), SrcIP: "10.0.0.2", DstIP: "10.0.0.1", Protocol: 6, Length: 60, TTL: 64},
	}))

	app := cli.NewApp()
	app.Commands = Commands()
	require.NoError(t, app.Run([]string{"ms-analyzer", "analyze", "-c", configPath, "--quiet", tablePath}))

	text, err := os.ReadFile(filepath.Join(reportDir, "vm-07.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "VM Migration Traffic Analysis Report\n"))
	assert.Contains(t, string(text), "Total Traffic: 1,560 bytes")
	assert.FileExists(t, filepath.Join(reportDir, "vm-07.json"))

	history, err := store.OpenHistory(historyPath)
	require.NoError(t, err)
	defer history.Close()
	runs, err := history.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "vm-07", runs[0].Name)
	assert.Equal(t, int64(1560), runs[0].Result.TotalBytes)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	run := sampleRun()
	require.NoError(t, printRun(&buf, run))
	assert.Contains(t, buf.String(), "Run ID: "+run.ID.String())
}

func TestPrintRun_WriteError(t *testing.T) {
	err := printRun(failingWriter{}, sampleRun())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
}
