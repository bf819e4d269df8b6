package probe

import (
	"MigraScope/internal/config"
	"MigraScope/internal/model"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// PacketHandler is a function that processes a received record.
type PacketHandler func(rec model.PacketRecord)

// Subscriber is responsible for subscribing to a NATS subject and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  *log.Logger

	// handlerMu serializes message handling with Start and Stop, so no
	// handler runs once Stop has returned.
	handlerMu sync.Mutex
	active    bool

	// Duration bounds Records. Zero means "until ctx is done".
	Duration time.Duration

	// OnRecord, if set, sees every decoded record as it arrives.
	OnRecord PacketHandler
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig, logger *log.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ms-probe subscriber"))
	if err != nil {
		return nil, err
	}
	logger.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the subject and processes messages with the provided handler.
// Messages that fail to decode are logged and dropped.
func (s *Subscriber) Start(handler PacketHandler) error {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	if s.sub != nil {
		return fmt.Errorf("subscriber already started")
	}
	sub, err := s.nc.Subscribe(s.subject, s.msgHandler(handler))
	if err != nil {
		return err
	}
	s.sub = sub
	s.active = true
	s.logger.Infof("Subscribed to '%s'. Waiting for messages...", s.subject)
	return nil
}

func (s *Subscriber) msgHandler(handler PacketHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		rec, err := Unmarshal(msg.Data)
		if err != nil {
			s.logger.Warnf("Error decoding packet record: %v", err)
			return
		}

		s.handlerMu.Lock()
		defer s.handlerMu.Unlock()
		if !s.active {
			return
		}
		if s.OnRecord != nil {
			s.OnRecord(rec)
		}
		handler(rec)
	}
}

// Stop unsubscribes without closing the connection.
func (s *Subscriber) Stop() error {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.active = false
	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	return err
}

// Records collects every record received until Duration elapses, then returns
// the finite set. With a Duration, cancelling ctx aborts the collection with
// ctx's error; without one, ctx being done is the normal end.
func (s *Subscriber) Records(ctx context.Context) ([]model.PacketRecord, error) {
	var (
		mu      sync.Mutex
		records []model.PacketRecord
	)
	if err := s.Start(func(rec model.PacketRecord) {
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
	}); err != nil {
		return nil, err
	}

	collectCtx := ctx
	if s.Duration > 0 {
		var cancel context.CancelFunc
		collectCtx, cancel = context.WithTimeout(ctx, s.Duration)
		defer cancel()
	}
	<-collectCtx.Done()

	if err := s.Stop(); err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if s.Duration > 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	s.logger.Infof("Collected %d records from '%s'", len(records), s.subject)
	return records, nil
}

func (s *Subscriber) String() string {
	return "nats:" + s.subject
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if err := s.Stop(); err != nil {
		s.logger.Warnf("Failed to unsubscribe: %v", err)
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed.")
	}
}
