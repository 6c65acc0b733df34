package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/Dosada05/pickleball-platform/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxMessageLength    = 2000
)

// Broadcaster доставляет сообщение всем подключённым клиентам комнаты.
// Реализуется ws-хабом; вызывается после фиксации сообщения в базе.
type Broadcaster interface {
	BroadcastToRoom(roomKey string, payload []byte)
}

// RoomKey - ключ комнаты в хабе.
func RoomKey(roomID int) string {
	return fmt.Sprintf("room_%d", roomID)
}

type ChatService interface {
	GetEventRoom(ctx context.Context, eventID, userID int) (*models.ChatRoom, error)
	GetTeamRoom(ctx context.Context, teamID, userID int) (*models.ChatRoom, error)

	// History возвращает страницу сообщений комнаты в порядке отправки.
	// before - курсор пагинации (0 для последней страницы).
	History(ctx context.Context, roomID, userID, before, limit int) ([]*models.ChatMessage, error)
	SendMessage(ctx context.Context, roomID, senderID int, content string) (*models.ChatMessage, error)

	// CanAccessRoom проверяет право пользователя на комнату. Используется
	// ws-обработчиком при подключении.
	CanAccessRoom(ctx context.Context, roomID, userID int) (bool, error)
}

type chatService struct {
	chatRepo        repositories.ChatRepository
	eventRepo       repositories.EventRepository
	reservationRepo repositories.ReservationRepository
	memberRepo      repositories.MemberRepository
	uploader        storage.FileUploader
}

func NewChatService(
	chatRepo repositories.ChatRepository,
	eventRepo repositories.EventRepository,
	reservationRepo repositories.ReservationRepository,
	memberRepo repositories.MemberRepository,
	uploader storage.FileUploader,
) ChatService {
	return &chatService{
		chatRepo:        chatRepo,
		eventRepo:       eventRepo,
		reservationRepo: reservationRepo,
		memberRepo:      memberRepo,
		uploader:        uploader,
	}
}

// canAccessEventRoom: писать и читать могут держатели слотов и создатель.
func (s *chatService) canAccessEventRoom(ctx context.Context, eventID, userID int) (bool, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return false, ErrEventNotFound
		}
		return false, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	if event.CreatorID == userID {
		return true, nil
	}
	_, err = s.reservationRepo.FindByEventAndUser(ctx, eventID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrReservationNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check reservation: %w", err)
}

func (s *chatService) canAccessTeamRoom(ctx context.Context, teamID, userID int) (bool, error) {
	_, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check membership: %w", err)
}

func (s *chatService) GetEventRoom(ctx context.Context, eventID, userID int) (*models.ChatRoom, error) {
	allowed, err := s.canAccessEventRoom(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotRoomMember
	}
	room, err := s.chatRepo.GetOrCreateEventRoom(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event room: %w", err)
	}
	return room, nil
}

func (s *chatService) GetTeamRoom(ctx context.Context, teamID, userID int) (*models.ChatRoom, error) {
	allowed, err := s.canAccessTeamRoom(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotRoomMember
	}
	room, err := s.chatRepo.GetOrCreateTeamRoom(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team room: %w", err)
	}
	return room, nil
}

func (s *chatService) CanAccessRoom(ctx context.Context, roomID, userID int) (bool, error) {
	room, err := s.chatRepo.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatRoomNotFound) {
			return false, ErrChatRoomNotFound
		}
		return false, err
	}
	switch room.Kind {
	case models.RoomEvent:
		if room.EventID == nil {
			return false, nil
		}
		return s.canAccessEventRoom(ctx, *room.EventID, userID)
	case models.RoomTeam:
		if room.TeamID == nil {
			return false, nil
		}
		return s.canAccessTeamRoom(ctx, *room.TeamID, userID)
	}
	return false, nil
}

func (s *chatService) History(ctx context.Context, roomID, userID, before, limit int) ([]*models.ChatMessage, error) {
	allowed, err := s.CanAccessRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotRoomMember
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.chatRepo.ListMessages(ctx, roomID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for _, m := range messages {
		if m.Sender != nil {
			populateUserDetailsFunc(m.Sender, s.uploader)
		}
	}
	return messages, nil
}

func (s *chatService) SendMessage(ctx context.Context, roomID, senderID int, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrChatMessageEmpty
	}
	if len(content) > maxMessageLength {
		return nil, ErrValidationFailed
	}

	allowed, err := s.CanAccessRoom(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotRoomMember
	}

	msg := &models.ChatMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}
