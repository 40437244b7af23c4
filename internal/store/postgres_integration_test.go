//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"drtnav/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	ctx := context.Background()
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := p.UpsertStops(ctx, []model.Stop{{ID: "it_s1", Position: model.GeoPoint{Lat: 39.74, Lng: -8.81}}}); err != nil {
		t.Fatalf("UpsertStops: %v", err)
	}
	if err := p.UpsertVehicles(ctx, []model.Vehicle{{ID: "it_v1", Capacity: 8}}); err != nil {
		t.Fatalf("UpsertVehicles: %v", err)
	}
	at := time.Date(2025, 9, 21, 8, 0, 0, 0, time.UTC)
	if err := p.InsertRequests(ctx, []model.Request{{ID: "it_r1", OriginStopID: "it_s1", DestStopID: "it_s1", RequestedPickupAt: &at}}); err != nil {
		t.Fatalf("InsertRequests: %v", err)
	}
	s, err := p.GetStop(ctx, "it_s1")
	if err != nil || s.Position.Lat == 0 {
		t.Fatalf("GetStop: %v %+v", err, s)
	}
	reqs, err := p.ListRequests(ctx, TimeFilter{Start: &at, End: &at})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	found := false
	for _, r := range reqs {
		if r.ID == "it_r1" {
			found = true
		}
	}
	if !found {
		t.Fatal("inserted request not returned by inclusive filter")
	}
	if _, err := p.ListVehicles(ctx, 3); err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
}
