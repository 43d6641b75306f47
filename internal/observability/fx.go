package observability

import (
	"github.com/smallbiznis/homeaccess/internal/observability/logger"
	"github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"github.com/smallbiznis/homeaccess/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// Both run for their side effects: the global tracer provider and the
	// scheduler collectors must exist before the first job or request.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(func(cfg metrics.Config) { metrics.SchedulerWithConfig(cfg) }),
)
