package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"drtnav/internal/model"
)

// pickupLayout matches the serialized pickup instants in request exports.
const pickupLayout = "2006-01-02 15:04:05"

// ReadRequests parses a ride-request CSV with header
// requestId,originStopId,destStopId,requestedPickupAt. The pickup column may
// be empty; a malformed timestamp degrades to an untimed request rather than
// dropping the rider.
func ReadRequests(r io.Reader) ([]model.Request, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read requests header: %w", err)
	}
	col := indexColumns(header)
	for _, name := range []string{"requestId", "originStopId", "destStopId"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("ingest: requests csv missing %s column", name)
		}
	}
	pickupIdx, hasPickup := col["requestedPickupAt"]

	var requests []model.Request
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read requests row: %w", err)
		}
		req := model.Request{
			ID:           rec[col["requestId"]],
			OriginStopID: rec[col["originStopId"]],
			DestStopID:   rec[col["destStopId"]],
		}
		if hasPickup && rec[pickupIdx] != "" {
			if at, err := time.Parse(pickupLayout, rec[pickupIdx]); err == nil {
				at = at.UTC()
				req.RequestedPickupAt = &at
			}
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// RequestWriter is the slice of the store the request loader needs.
type RequestWriter interface {
	InsertRequests(ctx context.Context, requests []model.Request) error
}

// LoadRequests reads path and inserts its requests.
func LoadRequests(ctx context.Context, dst RequestWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	requests, err := ReadRequests(f)
	if err != nil {
		return 0, err
	}
	if err := dst.InsertRequests(ctx, requests); err != nil {
		return 0, fmt.Errorf("ingest: insert requests: %w", err)
	}
	return len(requests), nil
}
