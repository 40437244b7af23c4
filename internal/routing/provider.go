// Package routing holds the clients for external route-geometry computation.
package routing

import (
	"context"
	"errors"

	"drtnav/internal/model"
)

// MaxWaypoints is the provider's hard cap on positions per route request.
const MaxWaypoints = 23

var ErrTooManyWaypoints = errors.New("routing: too many waypoints")

// RouteRequest describes one ordered route: departure, interior via points,
// destination.
type RouteRequest struct {
	Departure   model.GeoPoint
	Destination model.GeoPoint
	Via         []model.GeoPoint
	Mode        string // defaults to "driving"
}

func (r RouteRequest) waypointCount() int { return len(r.Via) + 2 }

// RouteResponse is the provider's summary for a computed route.
type RouteResponse struct {
	Legs        []model.RouteLeg
	Geometry    []model.GeoPoint
	DistanceKm  float64
	DurationSec float64
}

// Provider computes road-network routes. Implementations fail with an error
// on timeouts, invalid waypoint counts or unreachable geometry; callers are
// expected to degrade, never to abort a run.
type Provider interface {
	ComputeRoute(ctx context.Context, req RouteRequest) (*RouteResponse, error)
}
