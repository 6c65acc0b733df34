package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/pickleball-platform/chat"
	"github.com/Dosada05/pickleball-platform/middleware"
	"github.com/Dosada05/pickleball-platform/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin.
		return true
	},
}

type WebSocketHandler struct {
	hub           *chat.Hub
	chatService   services.ChatService
	authenticator *middleware.Authenticator
	logger        *slog.Logger
}

func NewWebSocketHandler(hub *chat.Hub, chatService services.ChatService, authenticator *middleware.Authenticator, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		chatService:   chatService,
		authenticator: authenticator,
		logger:        logger,
	}
}

// ServeChat поднимает WebSocket-соединение с комнатой чата.
// Браузерный WebSocket API не передаёт заголовки, токен идёт
// query-параметром: /ws/chat/{roomID}?token=...
func (h *WebSocketHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	roomID, err := readIDParam(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := h.authenticator.AuthenticateToken(r.URL.Query().Get("token"))
	if err != nil {
		unauthorizedResponse(w, r, "invalid or missing token")
		return
	}

	allowed, err := h.chatService.CanAccessRoom(r.Context(), roomID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !allowed {
		forbiddenResponse(w, r, "not a member of this chat room")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade chat connection",
			slog.Int("room_id", roomID),
			slog.Any("error", err),
		)
		return
	}

	roomKey := services.RoomKey(roomID)
	client := chat.NewClient(h.hub, conn, roomKey, userID)
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump(func(raw string) error {
		var frame struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(raw), &frame); err != nil {
			return services.ErrChatMessageEmpty
		}

		// Контекст запроса гаснет после выхода из обработчика,
		// соединение живёт дольше.
		message, err := h.chatService.SendMessage(context.Background(), roomID, userID, frame.Content)
		if err != nil {
			return err
		}

		h.hub.BroadcastToRoomJSON(roomKey, chat.Envelope{
			Type:    "message",
			Payload: message,
			Room:    roomKey,
		})
		return nil
	})
}
