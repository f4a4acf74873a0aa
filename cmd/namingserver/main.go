// Command namingserver runs the distfs naming coordinator: the
// client-service RPC endpoint, the storage-registration RPC endpoint,
// and a diagnostic HTTP listener exposing /metrics and /healthz (spec
// §6 "External interfaces"; SPEC_FULL.md §4.3.1).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/crgimenes/goconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/distfs/distfs/internal/coordinator"
	"github.com/distfs/distfs/internal/dfslog"
	"github.com/distfs/distfs/internal/tracing"
)

// defaultWorkerConcurrency mirrors indexer/layerscanner.go's "concurrent"
// parameter defaulting pattern (spec §5): replication/invalidation
// tasks are I/O-bound on storage-node RPCs, so a multiple of GOMAXPROCS
// is a reasonable default pool size.
func defaultWorkerConcurrency() int { return runtime.GOMAXPROCS(0) * 4 }

// Config is parsed with goconfig, matching the teacher daemons' struct-tag
// convention (cfgDefault/cfg/cfgHelper) for env/flag-driven configuration.
type Config struct {
	ClientListenAddr       string `cfgDefault:"0.0.0.0:9100" cfg:"CLIENT_LISTEN_ADDR" cfgHelper:"Address the client-service RPC endpoint binds"`
	RegisterListenAddr     string `cfgDefault:"0.0.0.0:9101" cfg:"REGISTER_LISTEN_ADDR" cfgHelper:"Address the storage-registration RPC endpoint binds"`
	DiagListenAddr         string `cfgDefault:"0.0.0.0:9102" cfg:"DIAG_LISTEN_ADDR" cfgHelper:"Address the /metrics and /healthz HTTP listener binds"`
	WorkerConcurrency      int    `cfgDefault:"0" cfg:"WORKER_CONCURRENCY" cfgHelper:"Replication/invalidation worker pool size; 0 means GOMAXPROCS*4"`
	LogLevel               string `cfgDefault:"info" cfg:"LOG_LEVEL" cfgHelper:"Log levels: debug, info, warning, error"`
	TracingEnabled         bool   `cfgDefault:"false" cfg:"TRACING_ENABLED" cfgHelper:"Export RPC call/dispatch spans instead of using a no-op tracer"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}).
		With().Timestamp().Caller().
		Logger()

	conf := Config{}
	if err := goconfig.Parse(&conf); err != nil {
		log.Fatal().Msgf("failed to parse config: %v", err)
	}
	log = log.Level(logLevel(conf.LogLevel))
	slogger := dfslog.NewConsole(conf.LogLevel)

	shutdownTracing := tracing.Bootstrap(conf.TracingEnabled)
	defer shutdownTracing(context.Background())

	concurrency := conf.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency()
	}

	c := coordinator.New(concurrency, slogger)

	clientSk := c.ClientServiceSkeleton()
	if err := clientSk.Start(conf.ClientListenAddr); err != nil {
		log.Fatal().Msgf("failed to start client-service endpoint: %v", err)
	}
	defer clientSk.Stop(nil)
	log.Info().Str("addr", clientSk.Addr().String()).Msg("client-service endpoint listening")

	regSk := c.RegistrationSkeleton()
	if err := regSk.Start(conf.RegisterListenAddr); err != nil {
		log.Fatal().Msgf("failed to start registration endpoint: %v", err)
	}
	defer regSk.Stop(nil)
	log.Info().Str("addr", regSk.Addr().String()).Msg("registration endpoint listening")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	diagSrv := &http.Server{Addr: conf.DiagListenAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", conf.DiagListenAddr).Msg("diagnostic endpoint listening")
		if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Msgf("diagnostic server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info().Msg("shutting down")
	diagSrv.Close()
}

func logLevel(s string) zerolog.Level {
	if l, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
