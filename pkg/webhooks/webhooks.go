package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

var (
	// ErrQueueFull is returned by Log when a delivery had to be dropped
	ErrQueueFull = errors.New("webhook queue is full")

	// ErrClosed is returned by Log after Close
	ErrClosed = errors.New("webhook notifier is closed")
)

// Format selects the request body shape
type Format string

const (
	FormatJSON  Format = "json"
	FormatSlack Format = "slack"
	FormatTeams Format = "teams"
)

// ParseFormat validates a format name. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatSlack, FormatTeams:
		return f, nil
	}
	return "", fmt.Errorf("unknown webhook format %q", s)
}

// Endpoint is one delivery target
type Endpoint struct {
	URL    string
	Secret string
	Format Format

	// Events limits delivery to these types; empty means every event
	Events []audit.EventType
}

func (e Endpoint) wants(t audit.EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, et := range e.Events {
		if et == t {
			return true
		}
	}
	return false
}

// Config configures a Notifier
type Config struct {
	Endpoints []Endpoint

	Workers     int
	QueueSize   int
	MaxAttempts uint
	RetryDelay  time.Duration
	MaxDelay    time.Duration

	// Timeout bounds each HTTP request
	Timeout time.Duration

	// DrainTimeout bounds how long Close waits for queued deliveries
	DrainTimeout time.Duration
}

// DefaultConfig returns the delivery defaults with no endpoints
func DefaultConfig() Config {
	return Config{
		Workers:      2,
		QueueSize:    256,
		MaxAttempts:  5,
		RetryDelay:   time.Second,
		MaxDelay:     time.Minute,
		Timeout:      10 * time.Second,
		DrainTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	return c
}

type delivery struct {
	endpoint Endpoint
	event    *audit.Event
}

// Notifier delivers audit events to webhook endpoints in the background
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *observability.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan delivery

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier starts the delivery workers
func NewNotifier(cfg Config, logger *observability.Logger) *Notifier {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = observability.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithField("component", "webhooks"),
		queue:  make(chan delivery, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// Log queues the event for every endpoint subscribed to its type
func (n *Notifier) Log(ctx context.Context, event *audit.Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	var dropped int
	for _, ep := range n.cfg.Endpoints {
		if !ep.wants(event.Type) {
			continue
		}
		select {
		case n.queue <- delivery{endpoint: ep, event: event}:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: dropped %d deliveries of %s", ErrQueueFull, dropped, event.Type)
	}
	return nil
}

// Close stops accepting events and waits for queued deliveries. Deliveries
// still running after DrainTimeout are cancelled.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(n.cfg.DrainTimeout):
		err = fmt.Errorf("webhook drain timed out after %v", n.cfg.DrainTimeout)
		n.cancel()
		<-done
	}
	n.cancel()
	return err
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for d := range n.queue {
		n.process(d)
	}
}

func (n *Notifier) process(d delivery) {
	defer observability.RecoverPanic(n.logger, "webhook delivery")

	logger := n.logger.WithFields(map[string]any{
		"event_type": string(d.event.Type),
		"event_id":   d.event.ID.String(),
		"url":        d.endpoint.URL,
	})
	if err := n.deliver(n.ctx, d); err != nil {
		logger.WithError(err).Error("webhook delivery failed")
		return
	}
	logger.Debug("webhook delivered")
}
