package opt

import (
	"context"
	"errors"
	"math"
	"sort"

	"drtnav/internal/model"
)

// Dispatch defaults, applied when the caller leaves a parameter unset.
const (
	DefaultMaxWaitMinutes   = 15
	DefaultMaxTravelMinutes = 20
	DefaultVehicleLimit     = 3

	// Travel heuristic: two stops per request, three minutes per stop.
	minutesPerStop = 3
)

var ErrNoVehicles = errors.New("opt: no vehicles available")

// AssignStats records the bookkeeping of one assignment pass.
type AssignStats struct {
	Skipped int // requests dropped for unresolvable origins
	Forced  int // requests placed by the least-loaded fallback
}

// AssignRequests places every resolvable request onto exactly one vehicle.
// Requests are processed in pickup-time order (missing pickup sorts first),
// each taking the cheapest feasible vehicle; when no vehicle is feasible the
// request is forced onto the least-loaded one rather than rejected. Ties on
// cost and on load break by fleet order.
func AssignRequests(ctx context.Context, coords CoordSource, requests []model.Request, vehicles []model.Vehicle, params model.RunParams) (model.Assignment, AssignStats, error) {
	if len(vehicles) == 0 {
		return nil, AssignStats{}, ErrNoVehicles
	}
	maxWait := params.MaxWaitMinutes
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitMinutes
	}
	maxTravel := params.MaxTravelMinutes
	if maxTravel <= 0 {
		maxTravel = DefaultMaxTravelMinutes
	}

	assignments := make(model.Assignment, len(vehicles))
	for _, v := range vehicles {
		assignments[v.ID] = []model.AssignedRequest{}
	}

	sorted := append([]model.Request(nil), requests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PickupSortKey().Before(sorted[j].PickupSortKey())
	})

	var stats AssignStats
	for _, req := range sorted {
		if _, ok := coords.Coords(ctx, req.OriginStopID); !ok {
			stats.Skipped++
			continue
		}

		bestIdx := -1
		minCost := math.Inf(1)
		for i, v := range vehicles {
			current := assignments[v.ID]
			if len(current) >= v.Cap() {
				continue
			}
			if violatesWaitingTime(req, current, maxWait) {
				continue
			}
			if violatesTravelDuration(current, maxTravel) {
				continue
			}
			if cost := assignmentCost(ctx, coords, req, v, current); cost < minCost {
				minCost = cost
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			id := vehicles[bestIdx].ID
			assignments[id] = append(assignments[id], model.AssignedRequest{Request: req})
			continue
		}

		least := 0
		for i := 1; i < len(vehicles); i++ {
			if len(assignments[vehicles[i].ID]) < len(assignments[vehicles[least].ID]) {
				least = i
			}
		}
		id := vehicles[least].ID
		assignments[id] = append(assignments[id], model.AssignedRequest{Request: req, Forced: true})
		stats.Forced++
	}
	return assignments, stats, nil
}

// violatesWaitingTime reports whether req's pickup is further than the wait
// window from any timed request already on the vehicle. Requests without a
// pickup time never violate the window.
func violatesWaitingTime(req model.Request, current []model.AssignedRequest, maxWaitMinutes int) bool {
	if req.RequestedPickupAt == nil {
		return false
	}
	window := float64(maxWaitMinutes * 60)
	for _, ar := range current {
		if ar.RequestedPickupAt == nil {
			continue
		}
		if math.Abs(req.RequestedPickupAt.Sub(*ar.RequestedPickupAt).Seconds()) > window {
			return true
		}
	}
	return false
}

// violatesTravelDuration estimates route length as stop count times a flat
// per-stop service time. An empty vehicle is always travel-feasible.
func violatesTravelDuration(current []model.AssignedRequest, maxTravelMinutes int) bool {
	if len(current) == 0 {
		return false
	}
	totalStops := (len(current) + 1) * 2
	return totalStops*minutesPerStop > maxTravelMinutes
}
