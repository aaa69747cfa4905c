package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"just3sec/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewAttemptRecorded("bob", 15, 0.1925, 0.19, 1)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventAttemptRecorded {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
}

func TestHubUserFilter(t *testing.T) {
	h := NewHub()
	_, alice := h.SubscribeUser(4, "alice")
	_, all := h.Subscribe(4)

	h.Broadcast(context.Background(), core.NewHistoryCleared("bob"))
	h.Broadcast(context.Background(), core.NewHistoryCleared("alice"))

	if len(alice) != 1 {
		t.Fatalf("alice should see only her event, got %d", len(alice))
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered subscriber should see both, got %d", len(all))
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)
	h.Broadcast(context.Background(), core.NewHistoryCleared("a"))
	h.Broadcast(context.Background(), core.NewHistoryCleared("a"))
	if len(ch) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(ch))
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewAchievementUnlocked("alice", "play_1")
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Achievement != "play_1" {
		t.Fatalf("unexpected achievement: %s", out.Achievement)
	}
}
