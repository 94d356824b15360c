package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"perpion/internal/config"
	"perpion/internal/engine"
	"perpion/internal/httpapi"
	"perpion/internal/telemetry"
)

func main() {
	telemetry.SetupLogging(false)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	hub := httpapi.NewHub()
	eng := engine.New(engine.Config{
		StartPrice:           cfg.OracleStartPrice,
		OracleTick:           cfg.OracleTick,
		OracleSeed:           cfg.OracleSeed,
		FundingIntervalTicks: cfg.FundingIntervalTicks,
	}, hub)
	defer func() {
		if err := eng.Shutdown(); err != nil {
			log.Error().Err(err).Msg("engine shutdown error")
		}
	}()

	api := httpapi.New(eng, eng.Book, eng.Positions, eng.Wallet, hub)

	// Bind both listeners synchronously before serving: a bad address or
	// a port already in use must fail main() and exit non-zero, not get
	// swallowed by a goroutine log line while the process idles.
	metricsListener, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.MetricsAddr).Msg("failed to bind metrics listener")
	}
	apiListener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("failed to bind api listener")
	}

	metricsServer := &http.Server{Handler: telemetry.Handler()}
	go func() {
		if err := metricsServer.Serve(metricsListener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	apiServer := &http.Server{Handler: api}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("exchange listening")
		if err := apiServer.Serve(apiListener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx := context.Background()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
