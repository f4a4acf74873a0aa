// Package tracing bootstraps the process-wide otel TracerProvider for
// the distfs daemons, mirroring pkg/tracing's enabled/disabled toggle:
// a no-op (never-sample) provider by default, a real one on request.
// RPC call/dispatch spans (internal/rpc) are emitted against whichever
// provider is installed here.
package tracing

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Bootstrap installs the global TracerProvider. With enabled=false it
// installs a provider that never samples, so span creation remains
// cheap but produces no exported data — tracing must never be able to
// break a daemon that doesn't need it.
func Bootstrap(enabled bool) (shutdown func(context.Context) error) {
	var opts []sdktrace.TracerProviderOption
	if enabled {
		opts = append(opts, sdktrace.WithSampler(sdktrace.AlwaysSample()))
		log.Info().Msg("tracing enabled")
	} else {
		opts = append(opts, sdktrace.WithSampler(sdktrace.NeverSample()))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
