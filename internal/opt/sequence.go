package opt

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"drtnav/internal/geo"
	"drtnav/internal/model"
	"drtnav/internal/routing"
)

const (
	// dropoffOffset keeps every dropoff behind every pickup in priority
	// order while preserving the pickup's relative position.
	dropoffOffset = 100
	// orphanPickupOrder sorts a dropoff whose pickup was unresolvable
	// behind all paired dropoffs.
	orphanPickupOrder = 999
)

// BuildSequence orders one vehicle's stop events: pickups in requested-time
// order first, then dropoffs in the same relative order. Events at
// unresolvable stops are dropped; a dropoff survives its own pickup being
// dropped and sorts last.
func BuildSequence(ctx context.Context, coords CoordSource, requests []model.Request) []model.StopEvent {
	sorted := append([]model.Request(nil), requests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PickupSortKey().Before(sorted[j].PickupSortKey())
	})

	events := make([]model.StopEvent, 0, 2*len(sorted))
	pickupOrder := make(map[string]int, len(sorted))
	for i, req := range sorted {
		p, ok := coords.Coords(ctx, req.OriginStopID)
		if !ok {
			continue
		}
		ev := model.StopEvent{
			Type:      model.Pickup,
			RequestID: req.ID,
			StopID:    req.OriginStopID,
			Position:  p,
			Priority:  i,
		}
		if req.RequestedPickupAt != nil {
			ev.PickupTime = req.RequestedPickupAt.Format("15:04")
		}
		events = append(events, ev)
		pickupOrder[req.ID] = i
	}
	for _, req := range sorted {
		p, ok := coords.Coords(ctx, req.DestStopID)
		if !ok {
			continue
		}
		order, ok := pickupOrder[req.ID]
		if !ok {
			order = orphanPickupOrder
		}
		events = append(events, model.StopEvent{
			Type:      model.Dropoff,
			RequestID: req.ID,
			StopID:    req.DestStopID,
			Position:  p,
			Priority:  order + dropoffOffset,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Priority < events[j].Priority
	})
	return events
}

// Sequencer turns one vehicle's assigned requests into a RouteResult. It
// prefers the remote calculator, falls back to the local sequence, then asks
// the geometry provider; every failure degrades the result instead of
// failing the run.
type Sequencer struct {
	Coords   CoordSource
	Provider routing.Provider
	Remote   *routing.RemoteCalculator
	Log      zerolog.Logger
}

func (s *Sequencer) SequenceVehicle(ctx context.Context, vehicleID string, requests []model.Request) model.RouteResult {
	res := model.RouteResult{VehicleID: vehicleID, State: model.RouteEmpty}
	if len(requests) == 0 {
		return res
	}

	if s.Remote != nil {
		remote, err := s.Remote.Calculate(ctx, vehicleID, requests)
		if err == nil {
			return remote
		}
		s.Log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("remote calculator failed, sequencing locally")
	}

	events := BuildSequence(ctx, s.Coords, requests)
	if len(events) < 2 {
		return res
	}
	if len(events) > routing.MaxWaypoints {
		events = events[:routing.MaxWaypoints]
		res.Truncated = true
	}
	res.Sequence = events
	res.Waypoints = make([]model.GeoPoint, len(events))
	for i, ev := range events {
		res.Waypoints[i] = ev.Position
	}
	res.EstimateKm = geo.PathKm(res.Waypoints)

	if s.Provider == nil {
		res.State = model.RouteDegraded
		res.Reason = model.ReasonNoProvider
		return res
	}

	last := len(res.Waypoints) - 1
	resp, err := s.Provider.ComputeRoute(ctx, routing.RouteRequest{
		Departure:   res.Waypoints[0],
		Destination: res.Waypoints[last],
		Via:         res.Waypoints[1:last],
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("route provider failed, serving degraded route")
		res.State = model.RouteDegraded
		res.Reason = model.ReasonProviderError
		return res
	}

	res.State = model.RouteRouted
	res.Legs = resp.Legs
	res.Geometry = resp.Geometry
	res.DistanceKm = resp.DistanceKm
	res.DurationSec = resp.DurationSec
	return res
}
