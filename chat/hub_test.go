package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// drain снимает все накопленные кадры клиента без блокировки.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw := <-c.Send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := testHub()

	alice := NewClient(hub, nil, "room_1", 1)
	bob := NewClient(hub, nil, "room_1", 2)
	eve := NewClient(hub, nil, "room_2", 3)
	hub.addClient(alice)
	hub.addClient(bob)
	hub.addClient(eve)

	if got := hub.RoomSize("room_1"); got != 2 {
		t.Fatalf("room_1 size: expected 2, got %d", got)
	}
	if got := hub.RoomSize("room_2"); got != 1 {
		t.Fatalf("room_2 size: expected 1, got %d", got)
	}

	// Сбрасываем кадры user_joined, дальше интересны только сообщения.
	drain(t, alice)
	drain(t, bob)
	drain(t, eve)

	hub.BroadcastToRoomJSON("room_1", Envelope{Type: "message", Payload: "serve!", Room: "room_1"})

	for _, c := range []*Client{alice, bob} {
		frames := drain(t, c)
		if len(frames) != 1 || frames[0].Type != "message" {
			t.Fatalf("user %d: expected one message frame, got %v", c.UserID, frames)
		}
		if frames[0].Room != "room_1" {
			t.Fatalf("user %d: wrong room %q", c.UserID, frames[0].Room)
		}
	}
	if frames := drain(t, eve); len(frames) != 0 {
		t.Fatalf("room_2 client must not receive room_1 frames, got %v", frames)
	}
}

func TestHubJoinLeaveNotifications(t *testing.T) {
	hub := testHub()

	alice := NewClient(hub, nil, "room_1", 1)
	hub.addClient(alice)
	drain(t, alice)

	bob := NewClient(hub, nil, "room_1", 2)
	hub.addClient(bob)

	frames := drain(t, alice)
	if len(frames) != 1 || frames[0].Type != "user_joined" {
		t.Fatalf("expected user_joined for alice, got %v", frames)
	}
	drain(t, bob)

	hub.removeClient(bob)
	frames = drain(t, alice)
	if len(frames) != 1 || frames[0].Type != "user_left" {
		t.Fatalf("expected user_left for alice, got %v", frames)
	}

	// Канал снятого клиента закрыт.
	if _, ok := <-bob.Send; ok {
		t.Fatal("send channel of the removed client must be closed")
	}

	if got := hub.RoomSize("room_1"); got != 1 {
		t.Fatalf("room_1 size after leave: expected 1, got %d", got)
	}
}

func TestHubRemoveLastClientDropsRoom(t *testing.T) {
	hub := testHub()

	alice := NewClient(hub, nil, "room_9", 1)
	hub.addClient(alice)
	hub.removeClient(alice)

	if got := hub.RoomSize("room_9"); got != 0 {
		t.Fatalf("expected empty room, got %d", got)
	}
	// Повторное снятие того же клиента безвредно.
	hub.removeClient(alice)
}

func TestClientEnqueueDropsWhenFull(t *testing.T) {
	hub := testHub()
	c := NewClient(hub, nil, "room_1", 1)

	for i := 0; i < sendBufferSize; i++ {
		c.enqueue([]byte("frame"))
	}
	c.enqueue([]byte("overflow"))

	if got := len(c.Send); got != sendBufferSize {
		t.Fatalf("expected buffer of %d frames, got %d", sendBufferSize, got)
	}

	c.closeSend()
	c.enqueue([]byte("after close"))
}
