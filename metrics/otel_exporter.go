package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/marcelsud/webhook-dispatch/webhook"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	queueLengthGauge   metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
	attemptCounter     metric.Int64Counter
	durationHistogram  metric.Int64Histogram
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
// collector may be nil when only attempt metrics are wanted
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-dispatch",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.attemptCounter, err = oe.meter.Int64Counter(
		"webhook.delivery.attempts",
		metric.WithDescription("Delivery attempts by event, status class and outcome"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return fmt.Errorf("creating attempt counter: %w", err)
	}

	oe.durationHistogram, err = oe.meter.Int64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Wall-clock duration of delivery attempts"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	if oe.collector == nil {
		return nil
	}

	// Queue length gauge (per queue and state)
	oe.queueLengthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.length",
		metric.WithDescription("Number of delivery units in the queue by state"),
		metric.WithUnit("{units}"),
		metric.WithInt64Callback(oe.observeQueueLengths),
	)
	if err != nil {
		return fmt.Errorf("creating queue length gauge: %w", err)
	}

	// Active workers gauge (per queue)
	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.workers.active",
		metric.WithDescription("Number of active workers per queue"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

// ObserveAttempt records one finished delivery attempt
func (oe *OTelExporter) ObserveAttempt(ctx context.Context, attempt webhook.DeliveryAttempt, outcome webhook.Outcome) {
	status := "none"
	if attempt.StatusCode != nil {
		status = strconv.Itoa(*attempt.StatusCode/100) + "xx"
	}

	attrs := metric.WithAttributes(
		attribute.String("event", string(attempt.Event)),
		attribute.String("status.class", status),
		attribute.String("outcome", outcome.Kind.String()),
		attribute.Bool("success", attempt.Success),
	)
	oe.attemptCounter.Add(ctx, 1, attrs)
	oe.durationHistogram.Record(ctx, attempt.DurationMs, metric.WithAttributes(
		attribute.String("event", string(attempt.Event)),
		attribute.Bool("success", attempt.Success),
	))
}

// observeQueueLengths is a callback that reports queue lengths
func (oe *OTelExporter) observeQueueLengths(ctx context.Context, observer metric.Int64Observer) error {
	queues, err := oe.collector.GetQueueLengths(ctx)
	if err != nil {
		return err
	}

	for name, q := range queues {
		for state, n := range map[string]int64{"ready": q.Ready, "scheduled": q.Scheduled, "pending": q.Pending} {
			observer.Observe(n, metric.WithAttributes(
				attribute.String("queue.name", name),
				attribute.String("queue.state", state),
			))
		}
	}

	return nil
}

// observeActiveWorkers is a callback that reports active worker counts
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	for queue, list := range workers {
		observer.Observe(int64(len(list)), metric.WithAttributes(
			attribute.String("queue.name", queue),
		))
	}

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
