package observability

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/cartas-cosmicas/internal/config"
)

// installSentinels replaces the OTel globals with known values and restores
// the previous ones when the test ends.
func installSentinels(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func enabledCfg(insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "cartas-test",
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_DisabledIsNoop(t *testing.T) {
	sentinel := installSentinels(t)

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "v0")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Same(t, sentinel, otel.GetTracerProvider())
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	for name, insecure := range map[string]bool{"insecure": true, "tls": false} {
		t.Run(name, func(t *testing.T) {
			sentinel := installSentinels(t)

			shutdown, err := SetupOTel(context.Background(), enabledCfg(insecure), "v1.2.3")
			require.NoError(t, err)
			t.Cleanup(func() { _ = shutdown(context.Background()) })

			tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
			require.True(t, ok)
			assert.NotSame(t, sentinel, tp)

			// The composite propagator carries trace context across a hop.
			ctx, span := otel.Tracer("test").Start(context.Background(), "open-letter")
			carrier := propagation.MapCarrier{}
			otel.GetTextMapPropagator().Inject(ctx, carrier)
			span.End()
			assert.NotEmpty(t, carrier.Get("traceparent"))
		})
	}
}

func TestSetupOTel_FailuresLeaveGlobalsAlone(t *testing.T) {
	origExp, origRes := newOTLPExporterFn, newServiceResourceFn
	t.Cleanup(func() { newOTLPExporterFn, newServiceResourceFn = origExp, origRes })

	cases := map[string]func(){
		"exporter": func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter down")
			}
		},
		"resource": func() {
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			newOTLPExporterFn, newServiceResourceFn = origExp, origRes
			breakIt()
			sentinel := installSentinels(t)

			_, err := SetupOTel(context.Background(), enabledCfg(true), "v0")
			require.Error(t, err)
			assert.Same(t, sentinel, otel.GetTracerProvider())
			assert.IsType(t, propagation.TraceContext{}, otel.GetTextMapPropagator())
		})
	}
}

func TestInstrumentDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "otel.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, InstrumentDB(db, false))
	assert.Empty(t, db.Plugins, "plugin registered while disabled")

	require.NoError(t, InstrumentDB(db, true))
	assert.Len(t, db.Plugins, 1)

	// gorm rejects registering the same plugin twice.
	assert.Error(t, InstrumentDB(db, true))
	assert.NoError(t, db.Exec("SELECT 1").Error)
}
