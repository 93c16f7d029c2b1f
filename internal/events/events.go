// Package events publishes pipeline events (execution results, learning
// feedback) to NATS for downstream consumers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event is the envelope every published payload is wrapped in.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher publishes events to NATS. Publishing is best-effort: a
// failed publish is logged, never propagated to the pipeline.
type Publisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Connect dials NATS with infinite reconnects.
func Connect(url string, log zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("vaultfunk-agent"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("nats_url", url).Msg("event publisher connected")
	return &Publisher{nc: nc, log: log}, nil
}

// Publish wraps payload in an Event envelope and publishes it on
// subject.
func (p *Publisher) Publish(subject string, payload any) {
	if !p.nc.IsConnected() {
		p.log.Warn().Str("subject", subject).Msg("event dropped: NATS not connected")
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("failed to marshal event payload")
		return
	}

	data, err := json.Marshal(Event{
		ID:        uuid.New(),
		Subject:   subject,
		Payload:   raw,
		Timestamp: time.Now(),
	})
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("failed to marshal event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
		return
	}

	p.log.Debug().Str("subject", subject).Msg("event published")
}

// Stats reports connection counters.
func (p *Publisher) Stats() map[string]any {
	return map[string]any{
		"connected":  p.nc.IsConnected(),
		"status":     p.nc.Status().String(),
		"out_msgs":   p.nc.Stats().OutMsgs,
		"out_bytes":  p.nc.Stats().OutBytes,
		"reconnects": p.nc.Stats().Reconnects,
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
		p.log.Info().Msg("event publisher closed")
	}
}
