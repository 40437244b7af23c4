package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"golang.org/x/time/rate"

	"drtnav/internal/metrics"
	"drtnav/internal/model"
)

// OSRMClient talks to an OSRM-compatible routing HTTP service. Calls are
// throttled by a shared limiter so parallel per-vehicle sequencing cannot
// flood the provider, and transient failures are retried with backoff.
type OSRMClient struct {
	baseURL string
	profile string
	session *http.Client
	limiter *rate.Limiter
	backoff time.Duration
}

// NewOSRMClient builds a client for baseURL (e.g. http://localhost:5000).
// ratePerSec <= 0 disables throttling.
func NewOSRMClient(baseURL string, timeout time.Duration, ratePerSec float64) *OSRMClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		session: &http.Client{Timeout: timeout},
		limiter: lim,
		backoff: 200 * time.Millisecond,
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry string  `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
	Message string `json:"message"`
}

func (c *OSRMClient) ComputeRoute(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	if req.waypointCount() > MaxWaypoints {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, req.waypointCount(), MaxWaypoints)
	}
	profile := c.profile
	if req.Mode != "" {
		profile = req.Mode
	}

	// OSRM wants lng,lat pairs joined by semicolons.
	coords := make([]string, 0, req.waypointCount())
	coords = append(coords, fmtCoord(req.Departure))
	for _, p := range req.Via {
		coords = append(coords, fmtCoord(p))
	}
	coords = append(coords, fmtCoord(req.Destination))
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=polyline&steps=false",
		c.baseURL, profile, strings.Join(coords, ";"))

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("routing: decode response: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("routing: provider error: %s %s", out.Code, out.Message)
	}

	r := out.Routes[0]
	resp := &RouteResponse{
		DistanceKm:  r.Distance / 1000,
		DurationSec: r.Duration,
	}
	for _, leg := range r.Legs {
		resp.Legs = append(resp.Legs, model.RouteLeg{DistanceKm: leg.Distance / 1000, DurationSec: leg.Duration})
	}
	if r.Geometry != "" {
		pts, _, err := polyline.DecodeCoords([]byte(r.Geometry))
		if err != nil {
			return nil, fmt.Errorf("routing: decode polyline: %w", err)
		}
		resp.Geometry = make([]model.GeoPoint, 0, len(pts))
		for _, p := range pts {
			resp.Geometry = append(resp.Geometry, model.GeoPoint{Lat: p[0], Lng: p[1]})
		}
	}
	return resp, nil
}

func fmtCoord(p model.GeoPoint) string { return fmt.Sprintf("%f,%f", p.Lng, p.Lat) }

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("status %d: %s", e.Code, e.Body) }

// getWithRetry retries transient failures (network errors, 429/5xx) with
// exponential backoff, respecting both the limiter and context cancellation.
func (c *OSRMClient) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	const maxAttempts = 3
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		body, err := c.get(ctx, url)
		metrics.ProviderDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.ProviderRequests.WithLabelValues("ok").Inc()
			return body, nil
		}
		metrics.ProviderRequests.WithLabelValues("error").Inc()
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var ne net.Error
		if !retry && errors.As(err, &ne) {
			retry = true
		}
		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *OSRMClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
