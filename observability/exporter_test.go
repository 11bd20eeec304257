package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type testSyncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *testSyncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *testSyncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestParseMetricsExporterKind(t *testing.T) {
	testcases := []struct {
		name    string
		kind    string
		want    MetricsExporterKind
		wantErr bool
	}{
		{name: "empty", kind: "", want: MetricsNone},
		{name: "none", kind: "none", want: MetricsNone},
		{name: "console", kind: " Console ", want: MetricsConsole},
		{name: "prometheus", kind: "prometheus", want: MetricsPrometheus},
		{name: "unknown", kind: "statsd", want: MetricsNone, wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			kind, err := ParseMetricsExporterKind(tc.kind)
			if tc.wantErr {
				require.Error(tt, err)
			} else {
				require.NoError(tt, err)
			}
			require.Equal(tt, tc.want, kind)
		})
	}
}

func TestInitMetricsExporter_None(t *testing.T) {
	exporter, err := InitMetricsExporter(context.Background(), MetricsNone)
	require.NoError(t, err)
	require.Equal(t, MetricsNone, exporter.Kind())
	require.Empty(t, exporter.Addr())
	require.NoError(t, exporter.Shutdown(context.Background()))

	var nilExporter *MetricsExporter
	require.Equal(t, MetricsNone, nilExporter.Kind())
	require.NoError(t, nilExporter.Shutdown(context.Background()))

	_, err = InitMetricsExporter(context.Background(), MetricsExporterKind("statsd"))
	require.Error(t, err)
}

func TestInitMetricsExporter_Console(t *testing.T) {
	out := &testSyncBuffer{}
	exporter, err := InitMetricsExporter(context.Background(), MetricsConsole,
		WithConsoleWriter(out),
		WithExporterInterval(time.Hour, time.Second),
	)
	require.NoError(t, err)
	require.Equal(t, MetricsConsole, exporter.Kind())

	counter, err := otel.Meter("xset/test/console").Int64Counter("xset.test.console")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	// Shutdown flushes the periodic reader.
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.Contains(t, out.String(), "xset.test.console")
}

func TestInitMetricsExporter_Prometheus(t *testing.T) {
	exporter, err := InitMetricsExporter(context.Background(), MetricsPrometheus,
		WithPrometheusAddr("127.0.0.1:0"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, exporter.Shutdown(context.Background()))
	}()
	require.NotEmpty(t, exporter.Addr())

	counter, err := otel.Meter("xset/test/prometheus").Int64Counter("xset.test.prometheus",
		metric.WithDescription("test counter"),
	)
	require.NoError(t, err)
	counter.Add(context.Background(), 5)

	InitAppStats("test")

	resp, err := http.Get("http://" + exporter.Addr() + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "xset_test_prometheus_total")
	require.Contains(t, string(body), "app_core_goroutines")
}

func TestProcessRSS(t *testing.T) {
	rss, err := ProcessRSS(context.Background())
	require.NoError(t, err)
	require.Greater(t, rss, uint64(0))
	require.Equal(t, "xset/app/default", appStatsMeterName(" "))
	require.Equal(t, "xset/app/run", appStatsMeterName("run"))
}
