package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"drtnav/internal/model"
)

func TestOSRMComputeRoute(t *testing.T) {
	geometry := string(polyline.EncodeCoords([][]float64{{39.74, -8.81}, {39.75, -8.80}}))

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":"Ok","routes":[{"distance":1800,"duration":240,"geometry":%q,
			"legs":[{"distance":1800,"duration":240}]}]}`, geometry)
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second, 0)
	resp, err := c.ComputeRoute(context.Background(), RouteRequest{
		Departure:   model.GeoPoint{Lat: 39.74, Lng: -8.81},
		Destination: model.GeoPoint{Lat: 39.75, Lng: -8.80},
	})
	require.NoError(t, err)

	// Coordinates travel as lng,lat under the driving profile.
	require.True(t, strings.HasPrefix(gotPath, "/route/v1/driving/-8.81"), gotPath)
	require.InDelta(t, 1.8, resp.DistanceKm, 1e-9)
	require.InDelta(t, 240.0, resp.DurationSec, 1e-9)
	require.Len(t, resp.Legs, 1)
	require.Len(t, resp.Geometry, 2)
	require.InDelta(t, 39.74, resp.Geometry[0].Lat, 1e-5)
	require.InDelta(t, -8.81, resp.Geometry[0].Lng, 1e-5)
}

func TestOSRMWaypointCapRejectedBeforeRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	via := make([]model.GeoPoint, MaxWaypoints-1)
	c := NewOSRMClient(srv.URL, time.Second, 0)
	_, err := c.ComputeRoute(context.Background(), RouteRequest{Via: via})
	require.ErrorIs(t, err, ErrTooManyWaypoints)
	require.Zero(t, calls)
}

func TestOSRMRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":500,"duration":60}]}`)
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second, 0)
	c.backoff = time.Millisecond
	resp, err := c.ComputeRoute(context.Background(), RouteRequest{
		Departure:   model.GeoPoint{Lat: 39.74, Lng: -8.81},
		Destination: model.GeoPoint{Lat: 39.75, Lng: -8.80},
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.InDelta(t, 0.5, resp.DistanceKm, 1e-9)
}

func TestOSRMDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad coordinates", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second, 0)
	c.backoff = time.Millisecond
	_, err := c.ComputeRoute(context.Background(), RouteRequest{
		Departure:   model.GeoPoint{Lat: 39.74, Lng: -8.81},
		Destination: model.GeoPoint{Lat: 39.75, Lng: -8.80},
	})
	var he *httpStatusError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Equal(t, 1, calls)
}

func TestOSRMProviderErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"NoRoute","message":"no route found","routes":[]}`)
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second, 0)
	_, err := c.ComputeRoute(context.Background(), RouteRequest{
		Departure:   model.GeoPoint{Lat: 39.74, Lng: -8.81},
		Destination: model.GeoPoint{Lat: 39.75, Lng: -8.80},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "NoRoute")
	require.False(t, errors.As(err, new(*httpStatusError)))
}
