package probe

import (
	"MigraScope/internal/config"
	"MigraScope/internal/model"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is responsible for publishing packet records to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *log.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, logger *log.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ms-probe publisher"))
	if err != nil {
		return nil, err
	}
	logger.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish serializes a record to protobuf wire format and publishes it to the configured subject.
func (p *Publisher) Publish(rec model.PacketRecord) error {
	return p.nc.Publish(p.subject, Marshal(rec))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warnf("Failed to drain NATS connection: %v", err)
		}
		p.logger.Info("NATS connection drained and closed.")
	}
}
