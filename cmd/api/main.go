package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drtnav/internal/api"
	"drtnav/internal/buildinfo"
	"drtnav/internal/config"
	"drtnav/internal/ingest"
	"drtnav/internal/metrics"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}

	// Optional seed files for a fresh store.
	ctx := context.Background()
	if cfg.GTFSStopsFile != "" {
		n, err := ingest.LoadGTFSStops(ctx, srv.Store, cfg.GTFSStopsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.GTFSStopsFile).Msg("load stops")
		}
		log.Info().Int("stops", n).Str("file", cfg.GTFSStopsFile).Msg("stops loaded")
	}
	if cfg.RequestsFile != "" {
		n, err := ingest.LoadRequests(ctx, srv.Store, cfg.RequestsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.RequestsFile).Msg("load requests")
		}
		log.Info().Int("requests", n).Str("file", cfg.RequestsFile).Msg("requests loaded")
	}

	srv.Notifier.Start()
	defer srv.Notifier.Close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("version", buildinfo.Version).Msg("api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("api stopped")
}
