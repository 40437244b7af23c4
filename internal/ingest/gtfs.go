// Package ingest loads seed data into the store: GTFS stops.txt for the
// stop network and a CSV backlog of ride requests.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"drtnav/internal/model"
)

// ReadGTFSStops parses a GTFS stops.txt. Columns are located by header name
// so extra GTFS columns and any column order are accepted. Rows with
// unparseable coordinates are skipped, not fatal; feeds are messy.
func ReadGTFSStops(r io.Reader) ([]model.Stop, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read stops header: %w", err)
	}
	col := indexColumns(header)
	idIdx, ok := col["stop_id"]
	if !ok {
		return nil, fmt.Errorf("ingest: stops.txt missing stop_id column")
	}
	latIdx, latOK := col["stop_lat"]
	lonIdx, lonOK := col["stop_lon"]
	if !latOK || !lonOK {
		return nil, fmt.Errorf("ingest: stops.txt missing stop_lat/stop_lon columns")
	}
	nameIdx, nameOK := col["stop_name"]

	var stops []model.Stop
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read stops row: %w", err)
		}
		lat, errLat := strconv.ParseFloat(rec[latIdx], 64)
		lon, errLon := strconv.ParseFloat(rec[lonIdx], 64)
		if errLat != nil || errLon != nil {
			continue
		}
		s := model.Stop{ID: rec[idIdx], Position: model.GeoPoint{Lat: lat, Lng: lon}}
		if nameOK {
			s.Name = rec[nameIdx]
		}
		stops = append(stops, s)
	}
	return stops, nil
}

// LoadGTFSStops reads path and upserts its stops.
func LoadGTFSStops(ctx context.Context, dst StopWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	stops, err := ReadGTFSStops(f)
	if err != nil {
		return 0, err
	}
	if err := dst.UpsertStops(ctx, stops); err != nil {
		return 0, fmt.Errorf("ingest: upsert stops: %w", err)
	}
	return len(stops), nil
}

// StopWriter is the slice of the store the stop loader needs.
type StopWriter interface {
	UpsertStops(ctx context.Context, stops []model.Stop) error
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		// A UTF-8 BOM on the first header cell is common in exported feeds.
		if i == 0 {
			name = trimBOM(name)
		}
		col[name] = i
	}
	return col
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}
