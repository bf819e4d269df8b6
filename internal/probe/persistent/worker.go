package persistent

import (
	"MigraScope/internal/model"
	"MigraScope/internal/table"
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Encodings supported by the worker.
const (
	EncodingCSV  = "csv"
	EncodingText = "text"
)

// Config controls where and how records are persisted.
type Config struct {
	Path              string
	Encoding          string
	ChannelBufferSize int
}

// Worker persists packet records to disk on a background goroutine so that
// the capture loop never blocks on file I/O.
type Worker struct {
	packetChan chan model.PacketRecord
	file       *os.File
	logger     *log.Logger
	wg         sync.WaitGroup
	dropped    int
	err        error
}

// NewWorker creates the output file and starts the writer goroutine.
func NewWorker(cfg Config, logger *log.Logger) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	var run func(w *Worker) error
	switch cfg.Encoding {
	case EncodingCSV, "":
		cfg.Encoding = EncodingCSV
		run = (*Worker).runCSVWorker
	case EncodingText:
		run = (*Worker).runTextWorker
	default:
		return nil, fmt.Errorf("unknown encoding '%s'", cfg.Encoding)
	}

	file, err := createOutputFile(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := &Worker{
		packetChan: make(chan model.PacketRecord, bufferSize),
		file:       file,
		logger:     logger,
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.err = run(w)
		// Keep draining after a write error so Persist never blocks forever.
		for range w.packetChan {
		}
	}()

	logger.Infof("Persistent worker started, encoding: %s, writing to: %s", cfg.Encoding, file.Name())
	return w, nil
}

func createOutputFile(cfg Config) (*os.File, error) {
	ext := ".log"
	if cfg.Encoding == EncodingCSV {
		ext = ".csv"
	}
	fileName := fmt.Sprintf("%s%s", time.Now().Format("2006-01-02_15-04-05"), ext)
	filePath := filepath.Join(cfg.Path, fileName)
	return os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

// FileName returns the path of the output file.
func (w *Worker) FileName() string {
	return w.file.Name()
}

func (w *Worker) runCSVWorker() error {
	buffered := bufio.NewWriter(w.file)
	writer, err := table.NewRecordWriter(buffered)
	if err != nil {
		return err
	}
	for rec := range w.packetChan {
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return buffered.Flush()
}

func (w *Worker) runTextWorker() error {
	writer := bufio.NewWriter(w.file)
	for rec := range w.packetChan {
		line := fmt.Sprintf("%s - %s -> %s, Proto: %d, Len: %d, TTL: %d\n",
			rec.Timestamp.Format("2006-01-02 15:04:05.000"),
			rec.SrcIP,
			rec.DstIP,
			rec.Protocol,
			rec.Length,
			rec.TTL,
		)
		if _, err := writer.WriteString(line); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// Persist hands a record to the writer goroutine, waiting for buffer space
// when the writer falls behind. No record is dropped.
func (w *Worker) Persist(rec model.PacketRecord) {
	w.packetChan <- rec
}

// Enqueue hands a record to the writer goroutine. When the buffer is full the
// record is dropped rather than stalling the caller.
func (w *Worker) Enqueue(rec model.PacketRecord) {
	select {
	case w.packetChan <- rec:
	default:
		w.dropped++
		if w.dropped == 1 || w.dropped%1000 == 0 {
			w.logger.Warnf("PersistentWorker: Channel is full, %d records dropped so far.", w.dropped)
		}
	}
}

// Dropped returns how many records Enqueue discarded.
func (w *Worker) Dropped() int {
	return w.dropped
}

// Stop flushes buffered records, closes the file and reports the first write error.
// Enqueue must not be called after Stop.
func (w *Worker) Stop() error {
	close(w.packetChan)
	w.wg.Wait()
	closeErr := w.file.Close()
	if w.err != nil {
		return fmt.Errorf("failed to persist records: %w", w.err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", w.file.Name(), closeErr)
	}
	w.logger.Infof("Persistent worker stopped and file %s closed.", w.file.Name())
	return nil
}
