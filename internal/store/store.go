package store

import (
	"context"
	"errors"
	"time"

	"drtnav/internal/model"
)

// TimeFilter bounds ListRequests by requested pickup instant. Both bounds are
// inclusive; a nil bound leaves that side open. Requests without a pickup
// instant are excluded whenever any bound is set, and included otherwise.
type TimeFilter struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether no bound is set.
func (f TimeFilter) IsZero() bool { return f.Start == nil && f.End == nil }

// Matches applies the filter semantics to one request.
func (f TimeFilter) Matches(r model.Request) bool {
	if f.IsZero() {
		return true
	}
	if r.RequestedPickupAt == nil {
		return false
	}
	t := *r.RequestedPickupAt
	if f.Start != nil && t.Before(*f.Start) {
		return false
	}
	if f.End != nil && t.After(*f.End) {
		return false
	}
	return true
}

// Store is the snapshot source the dispatch engine reads from.
type Store interface {
	ListRequests(ctx context.Context, filter TimeFilter) ([]model.Request, error)
	ListVehicles(ctx context.Context, limit int) ([]model.Vehicle, error)
	GetStop(ctx context.Context, stopID string) (model.Stop, error)

	// Seeding, used by ingest, demo data and tests.
	UpsertStops(ctx context.Context, stops []model.Stop) error
	UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error
	InsertRequests(ctx context.Context, requests []model.Request) error
}

var ErrNotFound = errors.New("not found")
