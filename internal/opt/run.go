package opt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"drtnav/internal/model"
	"drtnav/internal/routing"
	"drtnav/internal/stops"
	"drtnav/internal/store"
)

// Engine runs the full dispatch pipeline: snapshot the fleet and the request
// backlog, assign, then sequence every loaded vehicle.
type Engine struct {
	Store       store.Store
	Provider    routing.Provider
	Remote      *routing.RemoteCalculator
	Log         zerolog.Logger
	Defaults    model.RunParams
	Concurrency int // parallel sequencing width, 0 means 4
}

func (e *Engine) params(p model.RunParams) model.RunParams {
	if p.MaxWaitMinutes <= 0 {
		p.MaxWaitMinutes = e.Defaults.MaxWaitMinutes
	}
	if p.MaxWaitMinutes <= 0 {
		p.MaxWaitMinutes = DefaultMaxWaitMinutes
	}
	if p.MaxTravelMinutes <= 0 {
		p.MaxTravelMinutes = e.Defaults.MaxTravelMinutes
	}
	if p.MaxTravelMinutes <= 0 {
		p.MaxTravelMinutes = DefaultMaxTravelMinutes
	}
	if p.VehicleLimit <= 0 {
		p.VehicleLimit = e.Defaults.VehicleLimit
	}
	if p.VehicleLimit <= 0 {
		p.VehicleLimit = DefaultVehicleLimit
	}
	return p
}

// Run executes one dispatch pass over the requests matching filter. Vehicles
// are sequenced concurrently; a fresh coordinate cache is scoped to the run
// so stale stop edits never leak across runs.
func (e *Engine) Run(ctx context.Context, filter store.TimeFilter, params model.RunParams) (*model.RunResult, error) {
	params = e.params(params)
	started := time.Now().UTC()

	vehicles, err := e.Store.ListVehicles(ctx, params.VehicleLimit)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) == 0 {
		return nil, ErrNoVehicles
	}
	requests, err := e.Store.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	cache := stops.NewCache(e.Store)
	assignments, stats, err := AssignRequests(ctx, cache, requests, vehicles, params)
	if err != nil {
		return nil, err
	}

	seq := &Sequencer{Coords: cache, Provider: e.Provider, Remote: e.Remote, Log: e.Log}
	routes := make(map[string]model.RouteResult, len(vehicles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	width := e.Concurrency
	if width <= 0 {
		width = 4
	}
	g.SetLimit(width)
	for _, v := range vehicles {
		g.Go(func() error {
			rr := seq.SequenceVehicle(gctx, v.ID, assignments.Requests(v.ID))
			mu.Lock()
			routes[v.ID] = rr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &model.RunResult{
		RunID:        "run_" + uuid.NewString()[:8],
		StartedAt:    started,
		Params:       params,
		Assignments:  assignments,
		Routes:       routes,
		Vehicles:     vehicles,
		RequestCount: len(requests),
		SkippedCount: stats.Skipped,
		ForcedCount:  stats.Forced,
	}
	for id, rr := range routes {
		if rr.State == model.RouteDegraded {
			result.Degraded = append(result.Degraded, id)
		}
	}
	sort.Strings(result.Degraded)

	lookups, misses := cache.Stats()
	e.Log.Info().
		Str("run_id", result.RunID).
		Int("requests", result.RequestCount).
		Int("vehicles", len(vehicles)).
		Int("skipped", stats.Skipped).
		Int("forced", stats.Forced).
		Int("degraded", len(result.Degraded)).
		Int64("stop_lookups", lookups).
		Int64("stop_misses", misses).
		Dur("elapsed", time.Since(started)).
		Msg("dispatch run complete")
	return result, nil
}
