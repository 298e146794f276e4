package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/krailo/intercom/internal/adapters/http"
	"github.com/krailo/intercom/internal/adapters/rtc"
	sigclient "github.com/krailo/intercom/internal/adapters/signal"
	"github.com/krailo/intercom/internal/app"
	"github.com/krailo/intercom/internal/config"
	"github.com/krailo/intercom/internal/core"
	"github.com/krailo/intercom/internal/devices"
	"github.com/krailo/intercom/internal/metrics"
	"github.com/krailo/intercom/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open preference store")
	}
	defer store.Close()

	source, err := devices.NewCaptureSource()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init audio capture")
	}
	sink := devices.NewRoutingSink()
	registry := devices.NewRegistry(store, source, sink)

	promReg := prometheus.NewRegistry()
	mtr := metrics.New(promReg)

	stun := cfg.StunServers
	if len(stun) == 0 {
		stun = rtc.DefaultSTUNServers()
	}
	factory := rtc.NewFactory(stun, source)

	bcast := app.NewBroadcaster()

	// The client needs the engine's dispatch and the engine needs the client
	// for publishing; the closure breaks the cycle. No event is delivered
	// before Connect, by which point engine is set.
	var engine *app.Engine
	gw := sigclient.NewClient(cfg.GatewayURL, cfg.AccessToken, func(ev core.InboundEvent) {
		engine.HandleInbound(ev)
	})
	engine = app.NewEngine(cfg.Number, cfg.ICETimeout, factory, gw, registry, bcast, mtr)

	if err := gw.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to signaling bus")
	}
	defer gw.Close()

	engine.Start(ctx)

	r := router.SetupRouter(cfg, engine, promReg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("intercom started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
