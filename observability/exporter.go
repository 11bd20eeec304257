package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"

	"github.com/benz9527/xset/lib/infra"
)

type MetricsExporterKind string

const (
	MetricsNone       MetricsExporterKind = "none"
	MetricsConsole    MetricsExporterKind = "console"
	MetricsPrometheus MetricsExporterKind = "prometheus"
)

func ParseMetricsExporterKind(kind string) (MetricsExporterKind, error) {
	switch k := MetricsExporterKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "":
		return MetricsNone, nil
	case MetricsNone, MetricsConsole, MetricsPrometheus:
		return k, nil
	default:
	}
	return MetricsNone, infra.NewErrorStack("[observability] unknown metrics exporter " + kind)
}

type exporterConfig struct {
	interval time.Duration
	timeout  time.Duration
	writer   io.Writer
	addr     string
}

type ExporterOption func(*exporterConfig)

// WithExporterInterval is the console export interval.
func WithExporterInterval(interval, timeout time.Duration) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.interval = interval
		cfg.timeout = timeout
	}
}

func WithConsoleWriter(w io.Writer) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.writer = w
	}
}

// WithPrometheusAddr is the listen address of the /metrics endpoint.
func WithPrometheusAddr(addr string) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.addr = addr
	}
}

// MetricsExporter owns the global meter provider installed by
// InitMetricsExporter and the Prometheus HTTP endpoint if there is.
type MetricsExporter struct {
	kind     MetricsExporterKind
	provider *metric.MeterProvider
	server   *http.Server
	listener net.Listener
}

func (e *MetricsExporter) Kind() MetricsExporterKind {
	if e == nil {
		return MetricsNone
	}
	return e.kind
}

// Addr returns the bound address of the Prometheus endpoint, empty
// for other exporters.
func (e *MetricsExporter) Addr() string {
	if e == nil || e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Shutdown flushes the pending metrics and stops the endpoint.
func (e *MetricsExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var err error
	if e.server != nil {
		err = multierr.Append(err, e.server.Shutdown(ctx))
	}
	if e.provider != nil {
		err = multierr.Append(err, e.provider.Shutdown(ctx))
	}
	return err
}

// InitMetricsExporter installs the global meter provider by kind. The none
// kind keeps the otel default no-op provider.
func InitMetricsExporter(ctx context.Context, kind MetricsExporterKind, opts ...ExporterOption) (*MetricsExporter, error) {
	cfg := &exporterConfig{
		interval: 10 * time.Second,
		timeout:  5 * time.Second,
		writer:   os.Stdout,
		addr:     ":9464",
	}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}

	switch kind {
	case MetricsNone, "":
		return &MetricsExporter{kind: MetricsNone}, nil
	case MetricsConsole:
		mp, err := newConsoleMetricsExporter(cfg.interval, cfg.timeout,
			stdoutmetric.WithWriter(cfg.writer),
			stdoutmetric.WithoutTimestamps(),
		)
		if err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[observability] console exporter")
		}
		return &MetricsExporter{kind: kind, provider: mp}, nil
	case MetricsPrometheus:
		return newPrometheusMetricsExporter(ctx, cfg.addr)
	default:
	}
	return nil, infra.NewErrorStack("[observability] unknown metrics exporter " + string(kind))
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (*metric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// A dedicated registry keeps the endpoint free of the global collectors.
func newPrometheusMetricsExporter(ctx context.Context, addr string) (*MetricsExporter, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] prometheus exporter")
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] prometheus listen "+addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry: registry,
	}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			otel.Handle(err)
		}
	}()

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return &MetricsExporter{
		kind:     MetricsPrometheus,
		provider: mp,
		server:   server,
		listener: listener,
	}, nil
}
