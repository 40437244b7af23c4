package opt

import (
	"context"
	"math"

	"drtnav/internal/geo"
	"drtnav/internal/model"
)

// CoordSource resolves stop ids to coordinates. Satisfied by *stops.Cache.
type CoordSource interface {
	Coords(ctx context.Context, stopID string) (model.GeoPoint, bool)
}

// Cost weights. Negative contributions are bonuses.
const (
	pickupApproachWeight = 2.0
	tripDistanceWeight   = 0.5
	bboxExtendPenalty    = 0.3
	utilizationBonus     = 0.1
	timeClusterWindowMin = 10.0
	timeClusterWeight    = 0.02
	sharedStopBonus      = 0.2
	chainedStopBonus     = 0.1
)

// assignmentCost scores placing req onto veh given its current load. Lower
// is better. Returns +Inf when either stop of the request is unresolvable,
// which keeps the request out of every greedy pick and routes it to the
// force-assign fallback.
func assignmentCost(ctx context.Context, coords CoordSource, req model.Request, veh model.Vehicle, current []model.AssignedRequest) float64 {
	origin, okOrigin := coords.Coords(ctx, req.OriginStopID)
	dest, okDest := coords.Coords(ctx, req.DestStopID)
	if !okOrigin || !okDest {
		return math.Inf(1)
	}

	cost := geo.Euclid(veh.Position, origin)*pickupApproachWeight +
		geo.Euclid(origin, dest)*tripDistanceWeight

	cost += extensionPenalty(ctx, coords, origin, dest, current)
	cost -= float64(len(current)) * utilizationBonus
	cost += timeClusterBonus(req, current)
	cost += stopSharingBonus(req, current)
	return cost
}

// extensionPenalty charges a flat fee per endpoint that falls outside the
// bounding box of the vehicle's already-committed stops.
func extensionPenalty(ctx context.Context, coords CoordSource, origin, dest model.GeoPoint, current []model.AssignedRequest) float64 {
	if len(current) == 0 {
		return 0
	}
	var box geo.BBox
	for _, ar := range current {
		if p, ok := coords.Coords(ctx, ar.OriginStopID); ok {
			box.Extend(p)
		}
		if p, ok := coords.Coords(ctx, ar.DestStopID); ok {
			box.Extend(p)
		}
	}
	if box.Empty() {
		return 0
	}
	penalty := 0.0
	if !box.Contains(origin) {
		penalty += bboxExtendPenalty
	}
	if !box.Contains(dest) {
		penalty += bboxExtendPenalty
	}
	return penalty
}

// timeClusterBonus rewards pickups close in time to the vehicle's existing
// requests. The bonus fades linearly to zero at a ten minute average gap.
func timeClusterBonus(req model.Request, current []model.AssignedRequest) float64 {
	if len(current) == 0 || req.RequestedPickupAt == nil {
		return 0
	}
	sum, n := 0.0, 0
	for _, ar := range current {
		if ar.RequestedPickupAt == nil {
			continue
		}
		sum += math.Abs(req.RequestedPickupAt.Sub(*ar.RequestedPickupAt).Minutes())
		n++
	}
	if n == 0 {
		return 0
	}
	avg := sum / float64(n)
	return -math.Max(0, (timeClusterWindowMin-avg)*timeClusterWeight)
}

// stopSharingBonus rewards stop reuse: shared pickups, shared dropoffs and
// origin/destination chains. It accumulates over every assigned request, so
// a popular stop keeps pulling matching riders onto the same vehicle.
func stopSharingBonus(req model.Request, current []model.AssignedRequest) float64 {
	bonus := 0.0
	for _, ar := range current {
		if req.OriginStopID == ar.OriginStopID {
			bonus -= sharedStopBonus
		}
		if req.DestStopID == ar.DestStopID {
			bonus -= sharedStopBonus
		}
		if req.OriginStopID == ar.DestStopID || req.DestStopID == ar.OriginStopID {
			bonus -= chainedStopBonus
		}
	}
	return bonus
}
