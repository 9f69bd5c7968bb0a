package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/minigames/smartsync/internal/dispatcher"

// meter is the global meter, a no-op until a MeterProvider is installed.
func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

func (d *Dispatcher) initMetrics(m metric.Meter) error {
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.processed, "dispatcher.keys.processed", "Changed keys handled"},
		{&d.failed, "dispatcher.keys.failed", "Changed keys whose handler returned an error"},
		{&d.dropped, "dispatcher.keys.dropped", "Changed keys dropped by a full route queue"},
		{&d.ignored, "dispatcher.keys.ignored", "Changed keys with no route"},
	}
	for _, c := range counters {
		var err error
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	var err error
	d.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Changes waiting in a buffered route"))
	if err != nil {
		return fmt.Errorf("create dispatcher.queue.size: %w", err)
	}
	_, err = m.RegisterCallback(d.observeQueues, d.queueSize)
	if err != nil {
		return fmt.Errorf("register queue callback: %w", err)
	}
	return nil
}

func (d *Dispatcher) observeQueues(_ context.Context, o metric.Observer) error {
	d.bufMu.RLock()
	defer d.bufMu.RUnlock()
	for route, buf := range d.buffers {
		o.ObserveInt64(d.queueSize, int64(len(buf)), metric.WithAttributes(attribute.String("route", route)))
	}
	return nil
}
