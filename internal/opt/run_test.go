package opt

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"drtnav/internal/model"
	"drtnav/internal/routing"
	"drtnav/internal/store"
)

func seedEngineStore(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.UpsertStops(ctx, []model.Stop{
		{ID: "s1", Name: "Market", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}},
		{ID: "s2", Name: "Station", Position: model.GeoPoint{Lat: 39.75, Lng: -8.80}},
		{ID: "s3", Name: "Campus", Position: model.GeoPoint{Lat: 39.76, Lng: -8.79}},
	}))
	require.NoError(t, mem.UpsertVehicles(ctx, []model.Vehicle{
		{ID: "v1", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}},
		{ID: "v2", Position: model.GeoPoint{Lat: 39.76, Lng: -8.79}},
	}))
	require.NoError(t, mem.InsertRequests(ctx, []model.Request{
		{ID: "r1", OriginStopID: "s1", DestStopID: "s2", RequestedPickupAt: pickupAt(8, 0)},
		{ID: "r2", OriginStopID: "s1", DestStopID: "s3", RequestedPickupAt: pickupAt(8, 5)},
		{ID: "r3", OriginStopID: "s3", DestStopID: "s1", RequestedPickupAt: pickupAt(9, 0)},
		{ID: "r4", OriginStopID: "ghost", DestStopID: "s2", RequestedPickupAt: pickupAt(8, 10)},
	}))
	return mem
}

func TestEngineRunCoversEveryResolvableRequest(t *testing.T) {
	eng := &Engine{Store: seedEngineStore(t), Log: zerolog.Nop()}

	result, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(result.RunID, "run_"))
	require.Equal(t, 4, result.RequestCount)
	require.Equal(t, 1, result.SkippedCount)
	require.Len(t, result.Vehicles, 2)

	assigned := map[string]int{}
	for _, v := range result.Vehicles {
		for _, ar := range result.Assignments[v.ID] {
			assigned[ar.ID]++
		}
	}
	// Every resolvable request lands on exactly one vehicle; r4 is skipped.
	require.Equal(t, map[string]int{"r1": 1, "r2": 1, "r3": 1}, assigned)

	// No provider configured: every loaded vehicle degrades, sorted ids.
	require.Len(t, result.Routes, 2)
	for _, id := range result.Degraded {
		require.Equal(t, model.RouteDegraded, result.Routes[id].State)
		require.Equal(t, model.ReasonNoProvider, result.Routes[id].Reason)
	}
	require.IsIncreasing(t, result.Degraded)
}

func TestEngineRunDeterministicAssignments(t *testing.T) {
	mem := seedEngineStore(t)
	eng := &Engine{Store: mem, Log: zerolog.Nop()}

	first, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)

	require.Equal(t, first.Assignments, second.Assignments)
	require.Equal(t, first.Degraded, second.Degraded)
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestEngineRunTimeFilter(t *testing.T) {
	eng := &Engine{Store: seedEngineStore(t), Log: zerolog.Nop()}

	start, end := *pickupAt(8, 0), *pickupAt(8, 30)
	result, err := eng.Run(context.Background(), store.TimeFilter{Start: &start, End: &end}, model.RunParams{})
	require.NoError(t, err)
	// r3 is past the window; the untimed-pickup rule does not apply here
	// since every seeded request carries a time.
	require.Equal(t, 3, result.RequestCount)
}

func TestEngineRunAppliesDefaults(t *testing.T) {
	eng := &Engine{Store: seedEngineStore(t), Log: zerolog.Nop()}

	result, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxWaitMinutes, result.Params.MaxWaitMinutes)
	require.Equal(t, DefaultMaxTravelMinutes, result.Params.MaxTravelMinutes)
	require.Equal(t, DefaultVehicleLimit, result.Params.VehicleLimit)

	eng.Defaults = model.RunParams{MaxWaitMinutes: 30}
	result, err = eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)
	require.Equal(t, 30, result.Params.MaxWaitMinutes)
}

func TestEngineRunNoVehicles(t *testing.T) {
	mem := store.NewMemory()
	eng := &Engine{Store: mem, Log: zerolog.Nop()}

	_, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.ErrorIs(t, err, ErrNoVehicles)
}

func TestEngineRunRoutedWithProvider(t *testing.T) {
	provider := &stubProvider{resp: &routing.RouteResponse{
		Legs:        []model.RouteLeg{{DistanceKm: 3.2, DurationSec: 420}},
		DistanceKm:  3.2,
		DurationSec: 420,
	}}
	eng := &Engine{Store: seedEngineStore(t), Provider: provider, Log: zerolog.Nop()}

	result, err := eng.Run(context.Background(), store.TimeFilter{}, model.RunParams{})
	require.NoError(t, err)
	require.Empty(t, result.Degraded)
	for _, v := range result.Vehicles {
		rr := result.Routes[v.ID]
		if len(result.Assignments[v.ID]) == 0 {
			require.Equal(t, model.RouteEmpty, rr.State)
			continue
		}
		require.Equal(t, model.RouteRouted, rr.State)
		require.InDelta(t, 3.2, rr.DistanceKm, 1e-9)
	}
}
