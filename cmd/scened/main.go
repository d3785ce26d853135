package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/scenectl/internal/config"
	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/enginemem"
	"github.com/danmuck/scenectl/internal/logging"
	"github.com/danmuck/scenectl/internal/observability"
)

func main() {
	var (
		configPath  string
		listenAddr  string
		metricsAddr string
		worldFile   string
	)
	flag.StringVar(&configPath, "config", "", "path to scened TOML config")
	flag.StringVar(&listenAddr, "listen", "", "engine listen address (overrides config)")
	flag.StringVar(&metricsAddr, "metrics", "", "prometheus listen address (overrides config)")
	flag.StringVar(&worldFile, "world", "", "subtree file loaded into the root on boot (overrides config)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.DefaultDaemonConfig()
	if configPath != "" {
		loaded, err := config.LoadDaemonConfig(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load daemon config")
		}
		cfg = loaded
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if worldFile != "" {
		cfg.WorldFile = worldFile
	}
	if err := config.ValidateDaemonConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid daemon config")
	}
	logging.SetLevel(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("scened stopped")
	}
}

// run blocks until process signal shutdown.
func run(cfg config.DaemonConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	world := enginemem.NewWorld()
	if cfg.WorldFile != "" {
		text, err := os.ReadFile(cfg.WorldFile)
		if err != nil {
			return err
		}
		handles, err := world.LoadSubtree(string(text))
		if err != nil {
			return err
		}
		log.Info().Str("path", cfg.WorldFile).Int("nodes", len(handles)).Msg("world loaded")
	}

	if cfg.MetricsAddr != "" {
		observability.RegisterMetrics()
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	srv := engine.NewServer(world, engine.ServerConfig{ListenAddr: cfg.ListenAddr})
	log.Info().Str("addr", cfg.ListenAddr).Msg("engine listening")
	return srv.ListenAndServe(ctx)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
