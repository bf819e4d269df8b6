package model

// Writer defines a generic interface for persisting a finished analysis run.
type Writer interface {
	// Write persists the run. The implementation decides the destination and format.
	Write(run *Run) error

	// Name returns the writer type, e.g. "text" or "clickhouse".
	Name() string
}
