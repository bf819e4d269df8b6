package table

import (
	"MigraScope/internal/analyzer"
	"MigraScope/internal/model"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []model.PacketRecord {
	base := time.Date(2024, 3, 9, 22, 14, 58, 123456789, time.UTC)
	return []model.PacketRecord{
		{Timestamp: base, SrcIP: "192.168.1.1", DstIP: "192.168.1.2", Protocol: 6, Length: 1514, TTL: 64},
		{Timestamp: base.Add(1500 * time.Millisecond), SrcIP: "192.168.1.2", DstIP: "192.168.1.1", Protocol: 6, Length: 66, TTL: 64},
		{Timestamp: base.Add(45 * time.Second), SrcIP: "2001:db8::1", DstIP: "2001:db8::2", Protocol: 17, Length: 512, TTL: 255},
		{Timestamp: base.Add(2 * time.Minute), SrcIP: "10.1.1.1", DstIP: "192.168.1.2", Protocol: 1, Length: 98, TTL: 1},
	}
}

func TestRead(t *testing.T) {
	input := `timestamp,src_ip,dst_ip,protocol,length,ttl
2023-01-01 00:00:00.250000,192.168.1.1,192.168.1.2,6,1000000,64
2023-01-01T00:00:01Z,192.168.1.1,192.168.1.2,17,20,128
2023-01-01T02:00:02+02:00,192.168.1.2,192.168.1.1,6,0,64
`
	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 250000000, time.UTC), records[0].Timestamp)
	assert.Equal(t, "192.168.1.1", records[0].SrcIP)
	assert.Equal(t, uint8(6), records[0].Protocol)
	assert.Equal(t, 1000000, records[0].Length)
	assert.Equal(t, uint8(64), records[0].TTL)
	assert.Equal(t, uint8(128), records[1].TTL)
	assert.True(t, records[2].Timestamp.Equal(time.Date(2023, 1, 1, 0, 0, 2, 0, time.UTC)))
}

func TestRead_ColumnOrderAndExtras(t *testing.T) {
	input := "ttl,length,protocol,dst_ip,src_ip,timestamp,comment\n" +
		"64,1500,6,10.0.0.2,10.0.0.1,2023-01-01T00:00:00Z,first\n"
	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.0.0.1", records[0].SrcIP)
	assert.Equal(t, 1500, records[0].Length)
}

func TestRead_HeaderOnly(t *testing.T) {
	records, err := Read(strings.NewReader("timestamp,src_ip,dst_ip,protocol,length,ttl\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRead_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "timestamp,src_ip,dst_ip,protocol,ttl\n2023-01-01T00:00:00Z,a,b,6,64\n",
		"bad length":     "timestamp,src_ip,dst_ip,protocol,length,ttl\n2023-01-01T00:00:00Z,a,b,6,big,64\n",
		"negative":       "timestamp,src_ip,dst_ip,protocol,length,ttl\n2023-01-01T00:00:00Z,a,b,6,-3,64\n",
		"bad timestamp":  "timestamp,src_ip,dst_ip,protocol,length,ttl\nyesterday,a,b,6,10,64\n",
		"ttl range":      "timestamp,src_ip,dst_ip,protocol,length,ttl\n2023-01-01T00:00:00Z,a,b,6,10,300\n",
		"missing field":  "timestamp,src_ip,dst_ip,protocol,length,ttl\n2023-01-01T00:00:00Z,,b,6,10,64\n",
		"short row":      "timestamp,src_ip,dst_ip,protocol,length,ttl\n2023-01-01T00:00:00Z,a,b,6\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			records, err := Read(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrMalformedTable)
			assert.Nil(t, records)
		})
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	records := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,src_ip,dst_ip,protocol,length,ttl\n"))

	reloaded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, reloaded)
}

func TestSaveLoad_AnalysisRoundTrip(t *testing.T) {
	records := sampleRecords()
	want, err := analyzer.Analyze(records)
	require.NoError(t, err)

	for _, name := range []string{"capture.csv", "capture.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, records))

			reloaded, err := Load(path)
			require.NoError(t, err)

			result, err := analyzer.Analyze(reloaded)
			require.NoError(t, err)
			assert.Equal(t, want, result)
		})
	}
}

func TestLoad_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv.gz")
	require.NoError(t, Save(path, sampleRecords()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// gzip magic
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	require.NoError(t, Save(path, sampleRecords()))

	src := FileSource{Path: path}
	records, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, "table:"+path, src.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Records(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
