package model

import "context"

// Source delivers a finite set of packet records, e.g. from a stored table,
// a pcap file, a live interface or a message bus.
type Source interface {
	// Records blocks until the full record set is available or ctx is done.
	Records(ctx context.Context) ([]PacketRecord, error)

	// String describes the source for logs and stored runs.
	String() string
}
