package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drtnav/internal/store"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadGTFSStops(t *testing.T) {
	raw := "\ufeffstop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
		"s1,101,Mercado,39.7443,-8.8070\n" +
		"s2,102,Estação,39.7492,-8.8040\n" +
		"bad,103,Broken,notanumber,-8.80\n"

	stops, err := ReadGTFSStops(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, stops, 2)
	require.Equal(t, "s1", stops[0].ID)
	require.Equal(t, "Mercado", stops[0].Name)
	require.InDelta(t, 39.7443, stops[0].Position.Lat, 1e-9)
	require.InDelta(t, -8.8070, stops[0].Position.Lng, 1e-9)
}

func TestReadGTFSStopsMissingColumns(t *testing.T) {
	_, err := ReadGTFSStops(strings.NewReader("stop_id,stop_name\ns1,Mercado\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stop_lat")
}

func TestReadRequests(t *testing.T) {
	raw := "requestId,originStopId,destStopId,requestedPickupAt\n" +
		"r1,s1,s2,2025-07-01 08:00:00\n" +
		"r2,s2,s3,\n" +
		"r3,s1,s3,not-a-time\n"

	requests, err := ReadRequests(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, requests, 3)

	require.NotNil(t, requests[0].RequestedPickupAt)
	require.Equal(t, time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC), *requests[0].RequestedPickupAt)
	// Empty and malformed pickups both degrade to untimed requests.
	require.Nil(t, requests[1].RequestedPickupAt)
	require.Nil(t, requests[2].RequestedPickupAt)
}

func TestLoadIntoStore(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	stopsFile := writeTemp(t, "stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\ns1,Mercado,39.7443,-8.8070\n")
	n, err := LoadGTFSStops(ctx, mem, stopsFile)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reqFile := writeTemp(t, "requests.csv",
		"requestId,originStopId,destStopId,requestedPickupAt\nr1,s1,s2,2025-07-01 08:00:00\n")
	n, err = LoadRequests(ctx, mem, reqFile)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stop, err := mem.GetStop(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Mercado", stop.Name)

	reqs, err := mem.ListRequests(ctx, store.TimeFilter{})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "r1", reqs[0].ID)
}
