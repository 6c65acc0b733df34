package handlers

import (
	"net/http"

	"github.com/Dosada05/pickleball-platform/chat"
	"github.com/Dosada05/pickleball-platform/services"
)

type ChatHandler struct {
	chatService services.ChatService
	hub         *chat.Hub
}

func NewChatHandler(chatService services.ChatService, hub *chat.Hub) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		hub:         hub,
	}
}

func (h *ChatHandler) GetEventRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	eventID, err := readIDParam(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.chatService.GetEventRoom(r.Context(), eventID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChatHandler) GetTeamRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	teamID, err := readIDParam(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.chatService.GetTeamRoom(r.Context(), teamID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID, err := readIDParam(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	before := readIntQuery(r, "before", 0)
	limit := readIntQuery(r, "limit", 0)

	messages, err := h.chatService.History(r.Context(), roomID, userID, before, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"messages": messages}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID, err := readIDParam(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	message, err := h.chatService.SendMessage(r.Context(), roomID, userID, input.Content)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Подключённые клиенты комнаты получают кадр сразу после фиксации.
	h.hub.BroadcastToRoomJSON(services.RoomKey(roomID), chat.Envelope{
		Type:    "message",
		Payload: message,
		Room:    services.RoomKey(roomID),
	})

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"message": message}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
