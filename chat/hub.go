package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Envelope - формат кадров, уходящих клиентам комнаты.
type Envelope struct {
	Type    string      `json:"type"` // "message", "user_joined", "user_left", "error"
	Payload interface{} `json:"payload,omitempty"`
	Room    string      `json:"room,omitempty"`
}

// Hub держит подключения, сгруппированные по комнатам чата.
// Регистрация и снятие идут через каналы и сериализуются в Run.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	count := len(h.rooms[client.Room])
	h.mu.Unlock()

	h.logger.Debug("chat client connected",
		slog.String("room", client.Room),
		slog.Int("user_id", client.UserID),
		slog.Int("room_size", count),
	)
	h.BroadcastToRoomJSON(client.Room, Envelope{
		Type:    "user_joined",
		Payload: map[string]int{"user_id": client.UserID},
		Room:    client.Room,
	})
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	roomClients, ok := h.rooms[client.Room]
	if ok {
		if _, connected := roomClients[client]; connected {
			client.closeSend()
			delete(roomClients, client)
			if len(roomClients) == 0 {
				delete(h.rooms, client.Room)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.logger.Debug("chat client disconnected",
		slog.String("room", client.Room),
		slog.Int("user_id", client.UserID),
	)
	h.BroadcastToRoomJSON(client.Room, Envelope{
		Type:    "user_left",
		Payload: map[string]int{"user_id": client.UserID},
		Room:    client.Room,
	})
}

// BroadcastToRoom рассылает готовый кадр всем клиентам комнаты.
// Клиент с переполненным каналом пропускается, соединение добьёт
// ping-таймаут.
func (h *Hub) BroadcastToRoom(roomKey string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomKey] {
		client.enqueue(payload)
	}
}

func encodeEnvelope(envelope Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}

// BroadcastToRoomJSON сериализует envelope и рассылает его в комнату.
func (h *Hub) BroadcastToRoomJSON(roomKey string, envelope Envelope) {
	data, err := encodeEnvelope(envelope)
	if err != nil {
		h.logger.Error("failed to marshal chat envelope",
			slog.String("room", roomKey),
			slog.Any("error", err),
		)
		return
	}
	h.BroadcastToRoom(roomKey, data)
}

// RoomSize возвращает число подключений в комнате.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}
