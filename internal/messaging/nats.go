package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// EligibilityEvent is published after every eligibility check
type EligibilityEvent struct {
	Address      string    `json:"address"`
	Eligible     bool      `json:"eligible"`
	ThresholdMet bool      `json:"threshold_met"`
	HasStaked    bool      `json:"has_staked"`
	EthInvested  string    `json:"eth_invested"`
	Degraded     []string  `json:"degraded,omitempty"`
	Error        string    `json:"error,omitempty"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// NewEligibilityEvent builds the event for an evaluation or its failure.
// address is the raw input, used when no evaluation was produced.
func NewEligibilityEvent(address string, eval *models.Evaluation, err error, now time.Time) EligibilityEvent {
	if eval == nil {
		ev := EligibilityEvent{Address: address, EthInvested: "0", EvaluatedAt: now.UTC()}
		if err != nil {
			ev.Error = err.Error()
		}
		return ev
	}

	return EligibilityEvent{
		Address:      eval.Address,
		Eligible:     eval.Eligible(),
		ThresholdMet: eval.ThresholdMet,
		HasStaked:    eval.HasStaked,
		EthInvested:  eval.EthInvested.String(),
		Degraded:     eval.Degraded,
		EvaluatedAt:  eval.EvaluatedAt,
	}
}

// Publisher sends eligibility events to downstream consumers
type Publisher interface {
	PublishEligibility(ctx context.Context, event EligibilityEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

// PublishEligibility does nothing
func (NopPublisher) PublishEligibility(context.Context, EligibilityEvent) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }

// NATSClient publishes eligibility events on a NATS subject
type NATSClient struct {
	conn    *nats.Conn
	subject string
	logger  *logrus.Entry
}

// NewPublisher returns a NATS publisher, or a NopPublisher when no URL is configured
func NewPublisher(cfg *config.NATSConfig, logger *logrus.Logger) (Publisher, error) {
	if cfg.URL == "" {
		logger.WithField("component", "nats").Info("NATS URL not set, result publishing disabled")
		return NopPublisher{}, nil
	}
	return NewNATSClient(cfg, logger)
}

// NewNATSClient connects to NATS
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	log := logger.WithField("component", "nats")

	opts := []nats.Option{
		nats.Name("quest-eligibility"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DrainTimeout(cfg.DrainTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:    conn,
		subject: cfg.Subject,
		logger:  log,
	}, nil
}

// PublishEligibility publishes event as JSON
func (nc *NATSClient) PublishEligibility(ctx context.Context, event EligibilityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal eligibility event: %w", err)
	}

	if err := nc.conn.Publish(nc.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", nc.subject, err)
	}

	nc.logger.WithFields(logrus.Fields{
		"subject":  nc.subject,
		"address":  event.Address,
		"eligible": event.Eligible,
	}).Debug("Published eligibility event")

	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// Close drains pending messages and closes the connection
func (nc *NATSClient) Close() error {
	if err := nc.conn.Drain(); err != nil {
		nc.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
