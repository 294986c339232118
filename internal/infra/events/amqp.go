// Package events publishes service audit entries to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"yojana/internal/core"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AuditPublisher implements core.AuditRecorder by publishing each entry as a
// persistent JSON message. Routing keys have the form prefix.entity.action.
type AuditPublisher struct {
	ch       Channel
	exchange string
	prefix   string
	timeout  time.Duration
	logger   core.Logger
	closers  []func() error
}

// Option customises an AuditPublisher.
type Option func(*AuditPublisher)

// WithLogger receives publish failures, which Record cannot return.
func WithLogger(logger core.Logger) Option {
	return func(p *AuditPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *AuditPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewAuditPublisher publishes through ch to exchange.
func NewAuditPublisher(ch Channel, exchange, routingPrefix string, opts ...Option) *AuditPublisher {
	p := &AuditPublisher{
		ch:       ch,
		exchange: exchange,
		prefix:   routingPrefix,
		timeout:  5 * time.Second,
		logger:   discard{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial connects to url, declares a durable topic exchange and returns a
// publisher owning the connection. Close releases it.
func Dial(url, exchange, routingPrefix string, opts ...Option) (*AuditPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewAuditPublisher(ch, exchange, routingPrefix, opts...)
	p.closers = []func() error{ch.Close, conn.Close}
	return p, nil
}

// RoutingKey returns the key an entry is published under.
func (p *AuditPublisher) RoutingKey(entry core.AuditEntry) string {
	parts := make([]string, 0, 3)
	if p.prefix != "" {
		parts = append(parts, p.prefix)
	}
	return strings.Join(append(parts, string(entry.Entity), string(entry.Action)), ".")
}

// Record publishes entry. Failures are logged and dropped.
func (p *AuditPublisher) Record(ctx context.Context, entry core.AuditEntry) {
	body, err := json.Marshal(entry)
	if err != nil {
		p.logger.Error("encode audit entry", "operation", entry.Operation, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	key := p.RoutingKey(entry)
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    entry.Timestamp,
		Type:         entry.Operation,
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish audit entry", "exchange", p.exchange, "key", key, "error", err)
	}
}

// Close releases the channel and connection opened by Dial.
func (p *AuditPublisher) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
