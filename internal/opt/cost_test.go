package opt

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drtnav/internal/model"
)

type mapCoords map[string]model.GeoPoint

func (m mapCoords) Coords(_ context.Context, stopID string) (model.GeoPoint, bool) {
	p, ok := m[stopID]
	return p, ok
}

func pickupAt(hour, min int) *time.Time {
	t := time.Date(2025, 7, 1, hour, min, 0, 0, time.UTC)
	return &t
}

func testCoords() mapCoords {
	return mapCoords{
		"s1": {Lat: 39.74, Lng: -8.81},
		"s2": {Lat: 39.75, Lng: -8.80},
		"s3": {Lat: 39.76, Lng: -8.79},
		"s4": {Lat: 39.90, Lng: -8.60}, // far outside the s1..s3 cluster
	}
}

func TestAssignmentCostUnresolvableStopIsInfinite(t *testing.T) {
	coords := testCoords()
	veh := model.Vehicle{ID: "v1", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}}

	cost := assignmentCost(context.Background(), coords, model.Request{ID: "r1", OriginStopID: "nope", DestStopID: "s2"}, veh, nil)
	require.True(t, math.IsInf(cost, 1))

	cost = assignmentCost(context.Background(), coords, model.Request{ID: "r1", OriginStopID: "s1", DestStopID: "nope"}, veh, nil)
	require.True(t, math.IsInf(cost, 1))
}

func TestAssignmentCostEmptyVehicleIsPureDistance(t *testing.T) {
	coords := testCoords()
	veh := model.Vehicle{ID: "v1", Position: model.GeoPoint{Lat: 39.73, Lng: -8.82}}
	req := model.Request{ID: "r1", OriginStopID: "s1", DestStopID: "s2"}

	got := assignmentCost(context.Background(), coords, req, veh, nil)

	approach := math.Sqrt(0.01*0.01 + 0.01*0.01)
	trip := math.Sqrt(0.01*0.01 + 0.01*0.01)
	require.InDelta(t, approach*2.0+trip*0.5, got, 1e-12)
}

func TestAssignmentCostUtilizationBonus(t *testing.T) {
	coords := testCoords()
	veh := model.Vehicle{ID: "v1", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}}
	req := model.Request{ID: "r9", OriginStopID: "s1", DestStopID: "s2"}
	// Loaded rider shares both stops, so the load-dependent terms are the
	// utilization bonus plus the fixed sharing bonus.
	rider := model.AssignedRequest{Request: model.Request{ID: "r1", OriginStopID: "s1", DestStopID: "s2"}}

	empty := assignmentCost(context.Background(), coords, req, veh, nil)
	one := assignmentCost(context.Background(), coords, req, veh, []model.AssignedRequest{rider})
	two := assignmentCost(context.Background(), coords, req, veh, []model.AssignedRequest{rider, rider})

	require.Less(t, one, empty)
	require.Less(t, two, one)
	// Each extra rider adds -0.1 utilization and -0.4 stop sharing.
	require.InDelta(t, 0.5, one-two, 1e-12)
}

func TestAssignmentCostTimeClustering(t *testing.T) {
	coords := testCoords()
	veh := model.Vehicle{ID: "v1", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}}
	rider := func(at *time.Time) model.AssignedRequest {
		return model.AssignedRequest{Request: model.Request{ID: "r1", OriginStopID: "s2", DestStopID: "s3", RequestedPickupAt: at}}
	}
	req := model.Request{ID: "r9", OriginStopID: "s1", DestStopID: "s3", RequestedPickupAt: pickupAt(8, 0)}

	near := assignmentCost(context.Background(), coords, req, veh, []model.AssignedRequest{rider(pickupAt(8, 2))})
	far := assignmentCost(context.Background(), coords, req, veh, []model.AssignedRequest{rider(pickupAt(9, 30))})

	// 2 min apart: bonus -(10-2)*0.02 = -0.16. 90 min apart: no bonus.
	require.InDelta(t, 0.16, far-near, 1e-12)

	// Untimed candidate never earns the bonus.
	untimed := model.Request{ID: "r9", OriginStopID: "s1", DestStopID: "s3"}
	require.InDelta(t, far,
		assignmentCost(context.Background(), coords, untimed, veh, []model.AssignedRequest{rider(pickupAt(8, 2))}), 1e-12)
}

func TestAssignmentCostBBoxExtension(t *testing.T) {
	coords := testCoords()
	veh := model.Vehicle{ID: "v1", Position: model.GeoPoint{Lat: 39.75, Lng: -8.80}}
	riders := []model.AssignedRequest{
		{Request: model.Request{ID: "r1", OriginStopID: "s1", DestStopID: "s3"}},
	}

	inside := assignmentCost(context.Background(), coords, model.Request{ID: "a", OriginStopID: "s2", DestStopID: "s2"}, veh, riders)
	oneOut := assignmentCost(context.Background(), coords, model.Request{ID: "b", OriginStopID: "s2", DestStopID: "s4"}, veh, riders)

	// s2 sits inside the s1..s3 box, s4 outside: exactly one 0.3 penalty,
	// after backing out the distance and sharing differences.
	insideBase := assignmentCost(context.Background(), coords, model.Request{ID: "a", OriginStopID: "s2", DestStopID: "s2"}, veh, nil)
	oneOutBase := assignmentCost(context.Background(), coords, model.Request{ID: "b", OriginStopID: "s2", DestStopID: "s4"}, veh, nil)
	require.InDelta(t, 0.3, (oneOut-oneOutBase)-(inside-insideBase), 1e-12)
}

func TestStopSharingBonusAccumulates(t *testing.T) {
	req := model.Request{ID: "r9", OriginStopID: "s1", DestStopID: "s2"}
	sameOrigin := model.AssignedRequest{Request: model.Request{ID: "r1", OriginStopID: "s1", DestStopID: "s3"}}
	chained := model.AssignedRequest{Request: model.Request{ID: "r2", OriginStopID: "s2", DestStopID: "s1"}}

	require.InDelta(t, -0.2, stopSharingBonus(req, []model.AssignedRequest{sameOrigin}), 1e-12)
	require.InDelta(t, -0.4, stopSharingBonus(req, []model.AssignedRequest{sameOrigin, sameOrigin}), 1e-12)
	// A chained rider earns one -0.1 however many endpoints line up.
	require.InDelta(t, -0.1, stopSharingBonus(req, []model.AssignedRequest{chained}), 1e-12)
	// Shared origin plus chain on the same rider: -0.2 and -0.1 stack.
	both := model.AssignedRequest{Request: model.Request{ID: "r3", OriginStopID: "s1", DestStopID: "s1"}}
	require.InDelta(t, -0.3, stopSharingBonus(req, []model.AssignedRequest{both}), 1e-12)
}
