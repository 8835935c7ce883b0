package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Songmu/retry"
	amqp "github.com/rabbitmq/amqp091-go"

	"warroom/config"
	"warroom/core/metrics"
	"warroom/core/utils"
)

const publishTimeout = 5 * time.Second

// Publisher is the slice of an AMQP channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink forwards hub events to a topic exchange from a background worker.
// Routing key is the event type. Delivery failures are logged and counted,
// never returned to the caller that raised the event.
type AMQPSink struct {
	cfg     config.AMQPConfig
	queue   chan Event
	metrics *metrics.Metrics
	logger  *utils.Logger
	dial    func(cfg config.AMQPConfig) (Publisher, func() error, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
	closer  func() error
}

func NewAMQPSink(cfg config.AMQPConfig, m *metrics.Metrics, logger *utils.Logger) *AMQPSink {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &AMQPSink{
		cfg:     cfg,
		queue:   make(chan Event, size),
		metrics: m,
		logger:  logger,
		dial:    dialAMQP,
	}
}

// WithPublisher replaces the broker connection, used by tests.
func (s *AMQPSink) WithPublisher(p Publisher) *AMQPSink {
	s.dial = func(config.AMQPConfig) (Publisher, func() error, error) {
		return p, func() error { return nil }, nil
	}
	return s
}

func dialAMQP(cfg config.AMQPConfig) (Publisher, func() error, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	closer := func() error {
		if err := ch.Close(); err != nil && !conn.IsClosed() {
			conn.Close()
			return err
		}
		return conn.Close()
	}
	return ch, closer, nil
}

func (s *AMQPSink) Deliver(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.metrics.SinkFailed()
		if s.logger != nil {
			s.logger.Warnf("amqp sink queue full, dropping %s for incident %d", ev.Type, ev.Incident.ID)
		}
	}
}

func (s *AMQPSink) StartWithContext(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	pub, closer, err := s.dial(s.cfg)
	if err != nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Errorf("amqp sink disabled: %v", err)
		}
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.closer = closer
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev := <-s.queue:
				s.publish(runCtx, pub, ev)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

func (s *AMQPSink) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	wasRunning := s.running
	s.mu.Unlock()
	if !wasRunning || cancel == nil {
		return nil
	}
	cancel()
	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()
	var waitErr error
	select {
	case <-waitDone:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	// The connection is released even when the worker is still mid-publish.
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if closer != nil {
		if err := closer(); err != nil && waitErr == nil {
			return err
		}
	}
	return waitErr
}

func (s *AMQPSink) publish(ctx context.Context, pub Publisher, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.metrics.SinkFailed()
		if s.logger != nil {
			s.logger.Errorf("marshal %s event: %v", ev.Type, err)
		}
		return
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Headers: amqp.Table{
			"event_type":  string(ev.Type),
			"incident_id": ev.Incident.ID,
			"severity":    ev.Incident.Severity,
			"status":      ev.Incident.Status,
		},
		Timestamp: ev.EmittedAt,
		Body:      body,
	}
	attempts := s.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	err = retry.Retry(uint(attempts), 200*time.Millisecond, func() error {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return pub.PublishWithContext(pubCtx, s.cfg.Exchange, string(ev.Type), false, false, msg)
	})
	if err != nil {
		s.metrics.SinkFailed()
		if s.logger != nil {
			s.logger.Errorf("publish %s for incident %d: %v", ev.Type, ev.Incident.ID, err)
		}
	}
}
