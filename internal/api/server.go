// Package api implements the HTTP surface of the dispatch service.
package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"drtnav/internal/config"
	"drtnav/internal/model"
	"drtnav/internal/notify"
	"drtnav/internal/opt"
	"drtnav/internal/routing"
	"drtnav/internal/store"
)

type Server struct {
	Store    store.Store
	Engine   *opt.Engine
	Broker   EventBroker
	Notifier *notify.Notifier
	Log      zerolog.Logger

	mu      sync.RWMutex
	lastRun *model.RunResult
}

// NewServer wires the store, broker and engine from configuration. An empty
// DatabaseURL selects the in-memory store; an empty RedisURL selects the
// in-process broker.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		st = pg
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-memory broker")
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}

	var provider routing.Provider
	if cfg.OSRM.BaseURL != "" {
		provider = routing.NewOSRMClient(cfg.OSRM.BaseURL, time.Duration(cfg.OSRM.TimeoutSec)*time.Second, cfg.OSRM.RateLimitRPS)
	}
	var remote *routing.RemoteCalculator
	if cfg.Remote.URL != "" {
		remote = routing.NewRemoteCalculator(cfg.Remote.URL, time.Duration(cfg.Remote.TimeoutSec)*time.Second)
	}

	engine := &opt.Engine{
		Store:    st,
		Provider: provider,
		Remote:   remote,
		Log:      log.With().Str("component", "engine").Logger(),
		Defaults: cfg.DispatchParams(),
	}
	notifier := notify.NewNotifier(cfg.Notify.Endpoints, cfg.Notify.Secret, log.With().Str("component", "notify").Logger())

	return &Server{
		Store:    st,
		Engine:   engine,
		Broker:   broker,
		Notifier: notifier,
		Log:      log.With().Str("component", "api").Logger(),
	}, nil
}

// LatestRun returns the most recent run result, or nil before the first run.
func (s *Server) LatestRun() *model.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *Server) setLatestRun(run *model.RunResult) {
	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()
}
