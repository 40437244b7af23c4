package model

import "time"

// Core domain types for one dispatch run. Requests, vehicles and stops are
// immutable snapshots loaded from the store; the engines never write back.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the unresolvable 0/0 marker.
func (p GeoPoint) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }

// Request is a single rider's trip intent. RequestedPickupAt is optional;
// a nil value sorts as epoch zero ("earliest"), never as time.Now.
type Request struct {
	ID                string     `json:"requestId"`
	OriginStopID      string     `json:"originStopId"`
	DestStopID        string     `json:"destStopId"`
	RequestedPickupAt *time.Time `json:"requestedPickupAt,omitempty"`
}

// PickupSortKey returns the instant used for ordering requests.
func (r Request) PickupSortKey() time.Time {
	if r.RequestedPickupAt != nil {
		return *r.RequestedPickupAt
	}
	return time.Unix(0, 0).UTC()
}

// Vehicle is a fleet unit. Capacity defaults to DefaultCapacity when the
// stored value is zero or negative.
type Vehicle struct {
	ID       string   `json:"vehicleId"`
	Position GeoPoint `json:"position"`
	Capacity int      `json:"capacity,omitempty"`
}

const DefaultCapacity = 20

// Cap returns the effective capacity.
func (v Vehicle) Cap() int {
	if v.Capacity > 0 {
		return v.Capacity
	}
	return DefaultCapacity
}

// Stop is a named physical location.
type Stop struct {
	ID       string   `json:"stopId"`
	Name     string   `json:"name,omitempty"`
	Position GeoPoint `json:"position"`
}

type StopEventType string

const (
	Pickup  StopEventType = "pickup"
	Dropoff StopEventType = "dropoff"
)

// StopEvent is one pickup or dropoff in a vehicle's route, built per
// sequencing call and discarded afterwards.
type StopEvent struct {
	Type       StopEventType `json:"type"`
	RequestID  string        `json:"requestId"`
	StopID     string        `json:"stopId"`
	Position   GeoPoint      `json:"position"`
	Priority   int           `json:"priority"`
	PickupTime string        `json:"time,omitempty"` // HH:MM display, pickups only
}

// AssignedRequest wraps a Request with its placement outcome. Forced marks
// a request placed by the least-loaded fallback after every vehicle failed
// a feasibility check.
type AssignedRequest struct {
	Request
	Forced bool `json:"forced,omitempty"`
}

// Assignment maps every vehicle in the fleet snapshot (including idle ones)
// to its assigned requests in assignment order.
type Assignment map[string][]AssignedRequest

// Requests returns the flattened request list for a vehicle.
func (a Assignment) Requests(vehicleID string) []Request {
	out := make([]Request, 0, len(a[vehicleID]))
	for _, ar := range a[vehicleID] {
		out = append(out, ar.Request)
	}
	return out
}

// RouteState is the terminal state of one vehicle's sequencing.
type RouteState string

const (
	RouteEmpty    RouteState = "empty"    // no assigned requests or < 2 waypoints
	RouteRouted   RouteState = "routed"   // geometry provider succeeded
	RouteDegraded RouteState = "degraded" // waypoints valid, geometry unavailable
)

// Degradation reason codes, set when State == RouteDegraded.
const (
	ReasonProviderError = "provider_error"
	ReasonNoProvider    = "no_provider"
)

// RouteLeg is one provider leg between consecutive waypoints.
type RouteLeg struct {
	DistanceKm  float64 `json:"distanceKm"`
	DurationSec float64 `json:"durationSec"`
}

// RouteResult is the per-vehicle sequencing outcome. Waypoints and Sequence
// stay index-aligned; both are capped at the provider waypoint limit.
type RouteResult struct {
	VehicleID   string      `json:"vehicleId"`
	State       RouteState  `json:"state"`
	Reason      string      `json:"reason,omitempty"`
	Waypoints   []GeoPoint  `json:"waypoints,omitempty"`
	Sequence    []StopEvent `json:"sequence,omitempty"`
	Legs        []RouteLeg  `json:"legs,omitempty"`
	Geometry    []GeoPoint  `json:"geometry,omitempty"` // decoded road polyline
	DistanceKm  float64     `json:"distanceKm"`
	DurationSec float64     `json:"durationSec"`
	// EstimateKm is the straight-line fallback length, kept separate so a
	// degraded result never masquerades as provider output.
	EstimateKm float64 `json:"estimateKm,omitempty"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// RunParams are the caller-tunable dispatch thresholds.
type RunParams struct {
	MaxWaitMinutes   int `json:"maxWaitMinutes"`
	MaxTravelMinutes int `json:"maxTravelMinutes"`
	VehicleLimit     int `json:"vehicleLimit"`
}

// RunResult is the full outcome of one dispatch run.
type RunResult struct {
	RunID        string                 `json:"runId"`
	StartedAt    time.Time              `json:"startedAt"`
	Params       RunParams              `json:"params"`
	Assignments  Assignment             `json:"assignments"`
	Routes       map[string]RouteResult `json:"routes"`
	Vehicles     []Vehicle              `json:"vehicles"`
	RequestCount int                    `json:"requestCount"`
	SkippedCount int                    `json:"skippedCount"` // unresolvable origins
	ForcedCount  int                    `json:"forcedCount"`
	Degraded     []string               `json:"degraded,omitempty"` // vehicle ids
}
