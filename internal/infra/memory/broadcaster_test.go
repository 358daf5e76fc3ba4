package memory

import (
	"context"
	"encoding/json"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestBroadcasterDeliversToTopicOnly(t *testing.T) {
	b := NewBroadcaster(4)
	roomA, cancelA := b.Subscribe(domain.RoomTopic("a"))
	defer cancelA()
	roomB, cancelB := b.Subscribe(domain.RoomTopic("b"))
	defer cancelB()

	err := b.Publish(context.Background(), domain.RoomTopic("a"), domain.NewQuestionReset("a"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-roomA:
		var env struct {
			Event  string `json:"event"`
			RoomID string `json:"room_id"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Event != domain.EventQuestionReset || env.RoomID != "a" {
			t.Fatalf("unexpected envelope %+v", env)
		}
	default:
		t.Fatalf("expected message on room a")
	}

	select {
	case msg := <-roomB:
		t.Fatalf("room b should not receive, got %s", msg)
	default:
	}
}

func TestBroadcasterDropsOldestForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(2)
	ch, cancel := b.Subscribe("room.x")
	defer cancel()

	for _, m := range []string{"1", "2", "3"} {
		b.Deliver("room.x", []byte(m))
	}

	first := string(<-ch)
	second := string(<-ch)
	if first != "2" || second != "3" {
		t.Fatalf("expected newest two messages 2,3 got %s,%s", first, second)
	}
}

func TestBroadcasterCancelClosesAndForgets(t *testing.T) {
	b := NewBroadcaster(1)
	ch, cancel := b.Subscribe("room.x")
	if n := b.Subscribers("room.x"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if n := b.Deliver("room.x", []byte("late")); n != 0 {
		t.Fatalf("expected no subscribers after cancel, got %d", n)
	}
}
