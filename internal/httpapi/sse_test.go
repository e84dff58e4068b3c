package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/pkg/models"
)

func TestSSEHub_Subscribe_Publish_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	if err := hub.Publish(context.Background(), events.Event{Type: "test"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	msg := <-ch
	if !strings.Contains(string(msg), `"type":"test"`) {
		t.Errorf("Publish: got %s", msg)
	}
	hub.Unsubscribe(ch)
	// After unsubscribe, channel is closed
	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestSSEHub_Handler(t *testing.T) {
	hub := NewSSEHub()
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()
	// Wait for handler to send "connected" then stop (avoid reading rec.Body while handler writes - race).
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	// Read response body only after handler has finished writing.
	sc := bufio.NewScanner(rec.Body)
	var found bool
	for sc.Scan() {
		if strings.Contains(sc.Text(), "connected") {
			found = true
			break
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !found {
		t.Error("expected response to contain \"connected\"")
	}
}

func TestSSEHub_PublishEvent(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	if hub.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d", hub.Subscribers())
	}
	if err := hub.Publish(context.Background(), events.Event{Type: events.TaskAssigned, Agent: "alice", TaskID: "t1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(<-ch, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.TaskAssigned || got.Agent != "alice" || got.TaskID != "t1" {
		t.Errorf("event = %+v", got)
	}
	if got.Time.IsZero() {
		t.Error("expected event time to be stamped")
	}
}

func TestSSEHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	done := make(chan struct{})
	go func() {
		for i := 0; i < models.DefaultSSEChannelBuffer+10; i++ {
			_ = hub.Publish(context.Background(), events.Event{Type: "tick"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != models.DefaultSSEChannelBuffer {
		t.Errorf("buffered = %d", len(ch))
	}
}
