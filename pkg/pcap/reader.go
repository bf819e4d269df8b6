package pcap

import (
	"MigraScope/internal/engine/protocol"
	"MigraScope/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/klauspost/pgzip"
)

// packetDataSource is implemented by both pcapgo.Reader and pcapgo.NgReader.
type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packet records from a pcap or pcapng file.
type Reader struct {
	source  packetDataSource
	closers []io.Closer
	skipped int
}

// NewReader creates a new reader for the given file path. Files whose name
// contains ".pcapng" are read as pcapng, everything else as classic pcap.
// A ".gz" suffix enables gzip decompression. Both checks ignore case.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r := &Reader{closers: []io.Closer{file}}
	name := strings.ToLower(filePath)

	var in io.Reader = file
	if strings.HasSuffix(name, ".gz") {
		gz, err := pgzip.NewReader(file)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open gzip capture: %w", err)
		}
		r.closers = append(r.closers, gz)
		in = gz
	}

	if strings.Contains(name, ".pcapng") {
		r.source, err = pcapgo.NewNgReader(in, pcapgo.DefaultNgReaderOptions)
	} else {
		r.source, err = pcapgo.NewReader(in)
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	return r, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

// Skipped returns the number of frames that carried no IP layer.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the next IP packet record, skipping non-IP frames.
// It returns io.EOF when the file is exhausted.
func (r *Reader) Next() (model.PacketRecord, error) {
	for {
		data, ci, err := r.source.ReadPacketData()
		if err != nil {
			return model.PacketRecord{}, err
		}
		rec, err := protocol.ParseData(data, ci, r.source.LinkType())
		if errors.Is(err, protocol.ErrNotIP) {
			r.skipped++
			continue
		}
		if err != nil {
			return model.PacketRecord{}, err
		}
		return rec, nil
	}
}

// ReadPackets reads all packets from the file and sends the parsed records to
// the provided channel. It closes the channel when done.
func (r *Reader) ReadPackets(out chan<- model.PacketRecord) error {
	defer close(out)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}
		out <- rec
	}
}

// ReadAll reads the remaining records. A read error fails the whole call.
func (r *Reader) ReadAll(ctx context.Context) ([]model.PacketRecord, error) {
	var records []model.PacketRecord
	for {
		if len(records)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %d: %w", len(records)+r.skipped+1, err)
		}
		records = append(records, rec)
	}
}

// FileSource is a model.Source backed by a stored pcap or pcapng file.
type FileSource struct {
	Path string
}

// Records reads every IP packet in the file.
func (s FileSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	reader, err := NewReader(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture '%s': %w", s.Path, err)
	}
	defer reader.Close()
	return reader.ReadAll(ctx)
}

func (s FileSource) String() string {
	return "pcap:" + s.Path
}
