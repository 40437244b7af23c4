package api

import (
	"os"
	"testing"
	"time"
)

// Needs a live Redis; set REDIS_URL to run.
func TestRedisBrokerUnsubscribeThenPublish(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Fatal(err)
	}

	ch := b.Subscribe(RunTopic)
	b.Publish(RunTopic, SSEEvent{Type: "run.completed"})
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while still subscribed")
		}
		if evt.Type != "run.completed" {
			t.Fatalf("got event %q", evt.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	b.Unsubscribe(RunTopic, ch)
	// Publishing after a client disconnect must not reach a closed channel;
	// the subscriber goroutine closes ch after the pubsub shuts down.
	b.Publish(RunTopic, SSEEvent{Type: "run.completed"})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel never closed after unsubscribe")
		}
	}
}
