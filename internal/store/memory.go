package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"drtnav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	requests map[string]model.Request // id -> request
	reqOrder []string                 // insertion order, keeps listings stable
	vehicles map[string]model.Vehicle
	vehOrder []string
	stops    map[string]model.Stop
}

func NewMemory() *Memory {
	return &Memory{
		requests: map[string]model.Request{},
		vehicles: map[string]model.Vehicle{},
		stops:    map[string]model.Stop{},
	}
}

func (m *Memory) ListRequests(ctx context.Context, filter TimeFilter) ([]model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, 0, len(m.reqOrder))
	for _, id := range m.reqOrder {
		r := m.requests[id]
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListVehicles(ctx context.Context, limit int) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), m.vehOrder...)
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.Vehicle, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.vehicles[id])
	}
	return out, nil
}

func (m *Memory) GetStop(ctx context.Context, stopID string) (model.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stops[stopID]
	if !ok {
		return model.Stop{}, fmt.Errorf("stop %s: %w", stopID, ErrNotFound)
	}
	return s, nil
}

func (m *Memory) UpsertStops(ctx context.Context, stops []model.Stop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range stops {
		if s.ID == "" {
			return fmt.Errorf("upsert stops: empty stop id")
		}
		m.stops[s.ID] = s
	}
	return nil
}

func (m *Memory) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vehicles {
		if v.ID == "" {
			return fmt.Errorf("upsert vehicles: empty vehicle id")
		}
		if _, ok := m.vehicles[v.ID]; !ok {
			m.vehOrder = append(m.vehOrder, v.ID)
		}
		m.vehicles[v.ID] = v
	}
	return nil
}

func (m *Memory) InsertRequests(ctx context.Context, requests []model.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range requests {
		if r.ID == "" {
			r.ID = "req_" + uuid.NewString()[:8]
		}
		if _, ok := m.requests[r.ID]; !ok {
			m.reqOrder = append(m.reqOrder, r.ID)
		}
		m.requests[r.ID] = r
	}
	return nil
}
