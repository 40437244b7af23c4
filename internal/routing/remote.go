package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"drtnav/internal/model"
)

// pickupTimeLayout is the wire format for pickup instants crossing the
// process boundary to the remote calculator.
const pickupTimeLayout = "2006-01-02 15:04:05"

// RemoteCalculator invokes an external route-calculator service that runs the
// same sequencing logic closer to the geometry provider. Any error here is a
// signal to fall back to local sequencing, not a run failure.
type RemoteCalculator struct {
	url     string
	session *http.Client
}

func NewRemoteCalculator(url string, timeout time.Duration) *RemoteCalculator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteCalculator{url: url, session: &http.Client{Timeout: timeout}}
}

type remoteRequest struct {
	VehicleID string       `json:"vehicle_id"`
	Requests  []remoteTrip `json:"requests"`
}

type remoteTrip struct {
	RequestID         string `json:"requestId"`
	OriginStopID      string `json:"originStopId"`
	DestStopID        string `json:"destStopId"`
	RequestedPickupAt string `json:"requestedPickupAt,omitempty"`
}

type remoteResponse struct {
	Route []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"route"`
	Distance  float64      `json:"distance"`
	Duration  float64      `json:"duration"`
	Waypoints [][2]float64 `json:"waypoints"` // [lng, lat]
	Sequence  []struct {
		Type      string     `json:"type"`
		RequestID string     `json:"requestId"`
		StopID    string     `json:"stopId"`
		Coords    [2]float64 `json:"coords"`
		Priority  int        `json:"priority"`
	} `json:"sequence"`
}

// Calculate submits one vehicle's requests and maps the response to a
// RouteResult. Pickup instants are serialized as strings; the remote side
// treats absent values as earliest, same as the local sequencer.
func (c *RemoteCalculator) Calculate(ctx context.Context, vehicleID string, requests []model.Request) (model.RouteResult, error) {
	payload := remoteRequest{VehicleID: vehicleID}
	for _, r := range requests {
		rr := remoteTrip{RequestID: r.ID, OriginStopID: r.OriginStopID, DestStopID: r.DestStopID}
		if r.RequestedPickupAt != nil {
			rr.RequestedPickupAt = r.RequestedPickupAt.Format(pickupTimeLayout)
		}
		payload.Requests = append(payload.Requests, rr)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.RouteResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.RouteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.session.Do(req)
	if err != nil {
		return model.RouteResult{}, fmt.Errorf("remote calculator: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.RouteResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.RouteResult{}, fmt.Errorf("remote calculator: status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.RouteResult{}, fmt.Errorf("remote calculator: decode: %w", err)
	}

	res := model.RouteResult{
		VehicleID:   vehicleID,
		DistanceKm:  out.Distance,
		DurationSec: out.Duration,
	}
	for _, wp := range out.Waypoints {
		res.Waypoints = append(res.Waypoints, model.GeoPoint{Lat: wp[1], Lng: wp[0]})
	}
	for _, ev := range out.Sequence {
		res.Sequence = append(res.Sequence, model.StopEvent{
			Type:      model.StopEventType(ev.Type),
			RequestID: ev.RequestID,
			StopID:    ev.StopID,
			Position:  model.GeoPoint{Lat: ev.Coords[1], Lng: ev.Coords[0]},
			Priority:  ev.Priority,
		})
	}
	for _, leg := range out.Route {
		res.Legs = append(res.Legs, model.RouteLeg{DistanceKm: leg.Distance, DurationSec: leg.Duration})
	}
	if len(res.Waypoints) < 2 {
		res.State = model.RouteEmpty
		return res, nil
	}
	if len(res.Legs) > 0 || res.DistanceKm > 0 {
		res.State = model.RouteRouted
	} else {
		// Remote side already fell back to a geometry-less sequence.
		res.State = model.RouteDegraded
		res.Reason = model.ReasonProviderError
	}
	return res, nil
}
