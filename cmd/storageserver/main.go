// Command storageserver runs a distfs storage node: the data endpoint
// (size/read/write), the command endpoint (create/delete/copy), and
// the startup registration dance against a naming coordinator (spec
// §4.4).
package main

import (
	"context"
	"os"
	"strings"

	"github.com/crgimenes/goconfig"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/distfs/distfs/internal/dfslog"
	"github.com/distfs/distfs/internal/storage"
	"github.com/distfs/distfs/internal/tracing"
)

// Config is parsed with goconfig, matching the teacher daemons'
// struct-tag convention.
type Config struct {
	Root                 string `cfgDefault:"./data" cfg:"STORAGE_ROOT" cfgHelper:"Local directory this node serves file contents from"`
	DataListenAddr        string `cfgDefault:"0.0.0.0:9200" cfg:"DATA_LISTEN_ADDR" cfgHelper:"Address the data RPC endpoint binds"`
	CommandListenAddr     string `cfgDefault:"0.0.0.0:9201" cfg:"COMMAND_LISTEN_ADDR" cfgHelper:"Address the command RPC endpoint binds"`
	RegisterAddr          string `cfgDefault:"127.0.0.1:9101" cfg:"REGISTER_ADDR" cfgHelper:"Naming coordinator's registration endpoint"`
	CopyRateBytesPerSec   int64  `cfgDefault:"0" cfg:"STORAGE_COPY_RATE_BYTES_PER_SEC" cfgHelper:"Bandwidth cap on the copy loop, 0 means unlimited"`
	LogLevel              string `cfgDefault:"info" cfg:"LOG_LEVEL" cfgHelper:"Log levels: debug, info, warning, error"`
	TracingEnabled        bool   `cfgDefault:"false" cfg:"TRACING_ENABLED" cfgHelper:"Export RPC call/dispatch spans instead of using a no-op tracer"`
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

	node, err := storage.New(conf.Root, slogger)
	if err != nil {
		log.Fatal().Msgf("failed to initialize storage root: %v", err)
	}
	if conf.CopyRateBytesPerSec > 0 {
		node.CopyLimiter = rate.NewLimiter(rate.Limit(conf.CopyRateBytesPerSec), int(conf.CopyRateBytesPerSec))
	}

	dataSk := node.DataSkeleton()
	if err := dataSk.Start(conf.DataListenAddr); err != nil {
		log.Fatal().Msgf("failed to start data endpoint: %v", err)
	}
	defer dataSk.Stop(nil)
	log.Info().Str("addr", dataSk.Addr().String()).Msg("data endpoint listening")

	cmdSk := node.CommandSkeleton()
	if err := cmdSk.Start(conf.CommandListenAddr); err != nil {
		log.Fatal().Msgf("failed to start command endpoint: %v", err)
	}
	defer cmdSk.Stop(nil)
	log.Info().Str("addr", cmdSk.Addr().String()).Msg("command endpoint listening")

	ctx := context.Background()
	dups, err := node.Register(ctx, conf.RegisterAddr, dataSk.Addr().String(), cmdSk.Addr().String())
	if err != nil {
		log.Fatal().Msgf("failed to register with naming coordinator: %v", err)
	}
	log.Info().Int("duplicates", len(dups)).Msg("registered with naming coordinator")

	select {}
}

func logLevel(s string) zerolog.Level {
	if l, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
