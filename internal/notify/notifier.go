// Package notify delivers signed run-lifecycle webhooks to configured
// endpoints. Delivery is fire-and-forget from the caller's point of view;
// retries happen on a background worker.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"drtnav/internal/metrics"
)

const EventRunCompleted = "run.completed"

type delivery struct {
	URL       string
	EventType string
	Payload   []byte
}

type Notifier struct {
	Endpoints   []string
	Secret      string
	HTTP        *http.Client
	Log         zerolog.Logger
	MaxAttempts int
	Backoff     time.Duration

	queue chan delivery
	stop  chan struct{}
}

func NewNotifier(endpoints []string, secret string, log zerolog.Logger) *Notifier {
	return &Notifier{
		Endpoints:   endpoints,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		MaxAttempts: 5,
		Backoff:     time.Second,
		queue:       make(chan delivery, 256),
		stop:        make(chan struct{}),
	}
}

// Start launches the delivery worker. No-op when no endpoints are configured.
func (n *Notifier) Start() {
	if len(n.Endpoints) == 0 {
		return
	}
	go n.loop()
}

func (n *Notifier) Close() { close(n.stop) }

// Emit queues one event for every configured endpoint. A full queue drops
// the event with a warning; webhooks must never block a dispatch run.
func (n *Notifier) Emit(eventType string, data any) {
	if len(n.Endpoints) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"id":   fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		n.Log.Error().Err(err).Str("event_type", eventType).Msg("webhook payload marshal failed")
		return
	}
	for _, url := range n.Endpoints {
		select {
		case n.queue <- delivery{URL: url, EventType: eventType, Payload: payload}:
		default:
			n.Log.Warn().Str("url", url).Str("event_type", eventType).Msg("webhook queue full, dropping event")
		}
	}
}

func (n *Notifier) loop() {
	for {
		select {
		case <-n.stop:
			return
		case d := <-n.queue:
			n.deliver(d)
		}
	}
}

// deliver retries with exponential backoff until a 2xx or MaxAttempts.
func (n *Notifier) deliver(d delivery) {
	backoff := n.Backoff
	for attempt := 1; attempt <= n.MaxAttempts; attempt++ {
		code, latency, err := n.post(d)
		status := strconv.Itoa(code)
		if err != nil {
			status = "error"
		}
		metrics.WebhookDeliveries.WithLabelValues(d.EventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(d.EventType, status).Observe(float64(latency.Milliseconds()))

		if err == nil && code >= 200 && code < 300 {
			return
		}
		if attempt == n.MaxAttempts {
			n.Log.Error().Err(err).Str("url", d.URL).Str("event_type", d.EventType).
				Int("code", code).Int("attempts", attempt).Msg("webhook delivery abandoned")
			return
		}

		select {
		case <-n.stop:
			return
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}

func (n *Notifier) post(d delivery) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	if n.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(n.Secret, d.Payload))
	}

	start := time.Now()
	resp, err := n.HTTP.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, latency, nil
}
