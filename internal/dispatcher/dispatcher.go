package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minigames/smartsync/internal/room"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrQueueFull is returned by a non-blocking buffered route whose queue is full.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by a buffered route after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Change is one key of a room property notification.
type Change struct {
	Key        string
	Value      any
	Batch      uint64
	ReceivedAt time.Time
}

// HandlerFunc processes one changed key.
type HandlerFunc func(Change) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	once       bool
}

// Buffered makes the route async with a queue of the given size. All keys of
// the route are handled by one goroutine in arrival order.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered route block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Once runs the handler for the first change of the route only.
func Once() Option {
	return func(c *config) {
		c.once = true
	}
}

type prefixRoute struct {
	prefix  string
	handler HandlerFunc
}

// Dispatcher routes changed room properties to registered handlers, one key
// at a time. A failing key never stops the rest of its batch.
type Dispatcher struct {
	mu       sync.RWMutex
	exact    map[string]HandlerFunc
	prefixes []prefixRoute
	logger   Logger
	batches  atomic.Uint64

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	ignored   metric.Int64Counter

	stats Stats

	// Track buffers for gauge callback
	bufMu   sync.RWMutex
	buffers map[string]chan Change
	workers sync.WaitGroup
	closed  bool
}

// Stats are running totals, mirrored from the OTel counters for the status monitor.
type Stats struct {
	Processed atomic.Int64
	Failed    atomic.Int64
	Dropped   atomic.Int64
	Ignored   atomic.Int64
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		exact:   make(map[string]HandlerFunc),
		buffers: make(map[string]chan Change),
		logger:  logger,
	}

	if err := d.initMetrics(meter()); err != nil {
		return nil, err
	}

	return d, nil
}

// Register adds a handler for one exact key.
func (d *Dispatcher) Register(key string, h HandlerFunc, opts ...Option) {
	handler := d.wrap(key, h, opts)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.exact[key] = handler
}

// RegisterPrefix adds a handler for every key starting with prefix. Exact
// routes win over prefix routes; among prefixes the longest wins.
func (d *Dispatcher) RegisterPrefix(prefix string, h HandlerFunc, opts ...Option) {
	handler := d.wrap(prefix+"*", h, opts)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.prefixes = append(d.prefixes, prefixRoute{prefix: prefix, handler: handler})
	sort.SliceStable(d.prefixes, func(i, j int) bool {
		return len(d.prefixes[i].prefix) > len(d.prefixes[j].prefix)
	})
}

func (d *Dispatcher) wrap(route string, h HandlerFunc, opts []Option) HandlerFunc {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withRecover(route, h)

	if cfg.once {
		handler = withOnce(handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(route, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(route, handler)
	}

	return handler
}

// HasHandler returns true if a route matches the key.
func (d *Dispatcher) HasHandler(key string) bool {
	_, ok := d.route(key)
	return ok
}

func (d *Dispatcher) route(key string) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.exact[key]; ok {
		return h, true
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(key, p.prefix) {
			return p.handler, true
		}
	}
	return nil, false
}

// Dispatch routes every key of one notification. Keys are handled in sorted
// order; each key's handler runs regardless of the others' results, and all
// failures are returned joined.
func (d *Dispatcher) Dispatch(changed room.Properties) error {
	batch := d.batches.Add(1)
	now := time.Now()

	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		h, ok := d.route(key)
		if !ok {
			d.ignored.Add(context.Background(), 1)
			d.stats.Ignored.Add(1)
			continue
		}

		err := h(Change{Key: key, Value: changed[key], Batch: batch, ReceivedAt: now})
		switch {
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrClosed):
			errs = append(errs, err)
		case err != nil:
			d.failed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
			d.stats.Failed.Add(1)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Listener adapts the dispatcher to a room subscription. Failures are logged;
// the notification that carried them is not retried.
func (d *Dispatcher) Listener() room.Listener {
	return func(changed room.Properties) {
		if err := d.Dispatch(changed); err != nil {
			d.logger.Error("property notification had failing keys", "keys", len(changed), "error", err)
		}
	}
}

// Stats returns the running totals.
func (d *Dispatcher) Stats() *Stats {
	return &d.stats
}

// Close stops buffered routes after their queues drain.
func (d *Dispatcher) Close() {
	d.bufMu.Lock()
	if d.closed {
		d.bufMu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.bufMu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) withRecover(route string, h HandlerFunc) HandlerFunc {
	return func(c Change) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("route %s key %s: panic: %v", route, c.Key, r)
			}
		}()
		err = h(c)
		d.processed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("route", route)))
		d.stats.Processed.Add(1)
		return err
	}
}

// withOnce lets the first non-nil change through. Clearing the key does not
// use up the shot.
func withOnce(h HandlerFunc) HandlerFunc {
	var fired atomic.Bool
	return func(c Change) error {
		if c.Value == nil || !fired.CompareAndSwap(false, true) {
			return nil
		}
		return h(c)
	}
}

func (d *Dispatcher) withBuffer(route string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Change, size)

	d.bufMu.Lock()
	d.buffers[route] = buffer
	d.bufMu.Unlock()

	routeAttr := attribute.String("route", route)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for c := range buffer {
			if err := h(c); err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(routeAttr))
				d.stats.Failed.Add(1)
				d.logger.Error("buffered change failed", "route", route, "key", c.Key, "error", err)
			}
		}
	}()

	// Sends hold bufMu so Close cannot close the queue under them.
	if blocking {
		return func(c Change) error {
			d.bufMu.RLock()
			defer d.bufMu.RUnlock()
			if d.closed {
				return fmt.Errorf("%w: %s", ErrClosed, route)
			}
			buffer <- c
			return nil
		}
	}

	return func(c Change) error {
		d.bufMu.RLock()
		defer d.bufMu.RUnlock()
		if d.closed {
			return fmt.Errorf("%w: %s", ErrClosed, route)
		}
		select {
		case buffer <- c:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(routeAttr))
			d.stats.Dropped.Add(1)
			return fmt.Errorf("%w: %s", ErrQueueFull, route)
		}
	}
}

func (d *Dispatcher) withLogging(route string, h HandlerFunc) HandlerFunc {
	return func(c Change) error {
		start := time.Now()
		d.logger.Debug("handling change", "route", route, "key", c.Key, "batch", c.Batch)

		err := h(c)

		if err != nil {
			d.logger.Error("change failed", "route", route, "key", c.Key, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("change complete", "route", route, "key", c.Key, "duration", time.Since(start))
		}

		return err
	}
}
