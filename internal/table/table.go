// Package table stores packet records as CSV tables with the columns
// timestamp, src_ip, dst_ip, protocol, length, ttl.
package table

import (
	"MigraScope/internal/model"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// Columns is the header written by Write and required by Read.
var Columns = []string{"timestamp", "src_ip", "dst_ip", "protocol", "length", "ttl"}

// ErrMalformedTable is returned when a table is missing a column or holds an unparsable value.
var ErrMalformedTable = errors.New("malformed packet table")

// Zone-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Read parses a CSV table. The first row must name all columns in Columns;
// their order is free and extra columns are ignored. Any bad row fails the whole read.
func Read(r io.Reader) ([]model.PacketRecord, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedTable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read table header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	cols := make([]int, len(Columns))
	for i, name := range Columns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column '%s'", ErrMalformedTable, name)
		}
		cols[i] = pos
	}

	var records []model.PacketRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
			}
			return nil, fmt.Errorf("failed to read table: %w", err)
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string, cols []int) (model.PacketRecord, error) {
	field := func(i int) string {
		return strings.TrimSpace(row[cols[i]])
	}

	var rec model.PacketRecord
	ts, err := ParseTimestamp(field(0))
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts

	rec.SrcIP = field(1)
	rec.DstIP = field(2)
	if rec.SrcIP == "" || rec.DstIP == "" {
		return rec, fmt.Errorf("missing address")
	}

	proto, err := strconv.ParseUint(field(3), 10, 8)
	if err != nil {
		return rec, fmt.Errorf("invalid protocol '%s'", field(3))
	}
	rec.Protocol = uint8(proto)

	length, err := strconv.Atoi(field(4))
	if err != nil || length < 0 {
		return rec, fmt.Errorf("invalid length '%s'", field(4))
	}
	rec.Length = length

	ttl, err := strconv.ParseUint(field(5), 10, 8)
	if err != nil {
		return rec, fmt.Errorf("invalid ttl '%s'", field(5))
	}
	rec.TTL = uint8(ttl)

	return rec, nil
}

// ParseTimestamp parses the timestamp formats accepted in tables.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp '%s'", value)
}

// RecordWriter streams records into a CSV table. Timestamps are written in
// UTC with nanosecond precision so that Read restores the same instants.
type RecordWriter struct {
	csv *csv.Writer
	row []string
}

// NewRecordWriter writes the table header to w and returns a streaming writer.
func NewRecordWriter(w io.Writer) (*RecordWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write table header: %w", err)
	}
	return &RecordWriter{csv: writer, row: make([]string, len(Columns))}, nil
}

// Write appends one row.
func (w *RecordWriter) Write(rec model.PacketRecord) error {
	w.row[0] = rec.Timestamp.UTC().Format(time.RFC3339Nano)
	w.row[1] = rec.SrcIP
	w.row[2] = rec.DstIP
	w.row[3] = strconv.Itoa(int(rec.Protocol))
	w.row[4] = strconv.Itoa(rec.Length)
	w.row[5] = strconv.Itoa(int(rec.TTL))
	if err := w.csv.Write(w.row); err != nil {
		return fmt.Errorf("failed to write table row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (w *RecordWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}
	return nil
}

// Write serializes records as a CSV table.
func Write(w io.Writer, records []model.PacketRecord) error {
	writer, err := NewRecordWriter(w)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// Load reads a table file. Files ending in ".gz" are decompressed.
func Load(path string) ([]model.PacketRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table '%s': %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip table '%s': %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	records, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("table '%s': %w", path, err)
	}
	return records, nil
}

// Save writes records to a table file, compressing when path ends in ".gz".
func Save(path string, records []model.PacketRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table '%s': %w", path, err)
	}

	if strings.HasSuffix(path, ".gz") {
		gz := pgzip.NewWriter(file)
		if err := Write(gz, records); err != nil {
			gz.Close()
			file.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			file.Close()
			return fmt.Errorf("failed to finish gzip table '%s': %w", path, err)
		}
	} else if err := Write(file, records); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close table '%s': %w", path, err)
	}
	return nil
}

// FileSource is a model.Source backed by a stored table file.
type FileSource struct {
	Path string
}

// Records loads the whole table.
func (s FileSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(s.Path)
}

func (s FileSource) String() string {
	return "table:" + s.Path
}
