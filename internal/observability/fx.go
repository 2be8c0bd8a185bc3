package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/orgkeys/internal/observability/logger"
	"github.com/smallbiznis/orgkeys/internal/observability/metrics"
	"github.com/smallbiznis/orgkeys/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the process logger, the tracer provider and the
// prometheus metrics served on /metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.LogLevel,
				Format:              cfg.LogFormat,
				Debug:               cfg.Debug(),
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.OtelEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				SamplingRatio:    cfg.OtelSamplingRatio,
			}
		},
		tracing.NewProvider,
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		metrics.New,
	),
	// The tracer provider installs itself globally; force its construction.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
