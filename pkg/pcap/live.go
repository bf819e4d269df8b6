package pcap

import (
	"MigraScope/internal/engine/protocol"
	"MigraScope/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/pcap"
)

// readTimeout bounds each blocking read so cancellation is noticed promptly.
const readTimeout = 250 * time.Millisecond

// LiveSource captures packets from a network interface for a fixed duration.
type LiveSource struct {
	Interface   string
	Duration    time.Duration
	SnapshotLen int32
	Promiscuous bool
}

// Stream captures until the duration elapses and hands every IP packet to fn.
// Cancelling ctx aborts the capture with ctx's error; reaching the duration is a
// normal end. An error from fn stops the capture and is returned.
func (s LiveSource) Stream(ctx context.Context, fn func(model.PacketRecord) error) error {
	if s.Interface == "" {
		return fmt.Errorf("no capture interface configured")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("capture duration must be positive")
	}

	handle, err := pcap.OpenLive(s.Interface, s.SnapshotLen, s.Promiscuous, readTimeout)
	if err != nil {
		return fmt.Errorf("error opening device %s: %w", s.Interface, err)
	}
	defer handle.Close()

	captureCtx, cancel := context.WithTimeout(ctx, s.Duration)
	defer cancel()

	linkType := handle.LinkType()
	for captureCtx.Err() == nil {
		data, ci, err := handle.ReadPacketData()
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read from %s: %w", s.Interface, err)
		}

		rec, err := protocol.ParseData(data, ci, linkType)
		if err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// Records captures for the configured duration and returns the finite record set.
func (s LiveSource) Records(ctx context.Context) ([]model.PacketRecord, error) {
	var records []model.PacketRecord
	err := s.Stream(ctx, func(rec model.PacketRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s LiveSource) String() string {
	return "live:" + s.Interface
}
