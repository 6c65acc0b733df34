package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pickleball-platform/models"
)

var ErrChatRoomNotFound = errors.New("chat room not found")

type ChatRepository interface {
	// GetOrCreateEventRoom возвращает комнату события, создавая её при
	// первом обращении. ON CONFLICT DO NOTHING делает ленивое создание
	// безопасным при конкурентных вызовах.
	GetOrCreateEventRoom(ctx context.Context, eventID int) (*models.ChatRoom, error)
	GetOrCreateTeamRoom(ctx context.Context, teamID int) (*models.ChatRoom, error)
	GetRoomByID(ctx context.Context, id int) (*models.ChatRoom, error)

	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListMessages возвращает страницу сообщений в порядке создания.
	// before - курсор (id сообщения, 0 - последняя страница), limit - размер.
	ListMessages(ctx context.Context, roomID int, before int, limit int) ([]*models.ChatMessage, error)
}

type postgresChatRepository struct {
	db *sql.DB
}

func NewPostgresChatRepository(db *sql.DB) ChatRepository {
	return &postgresChatRepository{db: db}
}

func scanRoom(row rowScanner, room *models.ChatRoom) error {
	return row.Scan(&room.ID, &room.Kind, &room.EventID, &room.TeamID, &room.CreatedAt)
}

func (r *postgresChatRepository) getOrCreateRoom(ctx context.Context, insert, sel string, ownerID int) (*models.ChatRoom, error) {
	if _, err := r.db.ExecContext(ctx, insert, ownerID); err != nil {
		return nil, fmt.Errorf("failed to create chat room: %w", err)
	}
	room := &models.ChatRoom{}
	if err := scanRoom(r.db.QueryRowContext(ctx, sel, ownerID), room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatRoomNotFound
		}
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	return room, nil
}

func (r *postgresChatRepository) GetOrCreateEventRoom(ctx context.Context, eventID int) (*models.ChatRoom, error) {
	return r.getOrCreateRoom(ctx,
		`INSERT INTO chat_rooms (kind, event_id) VALUES ('event', $1) ON CONFLICT (event_id) DO NOTHING`,
		`SELECT id, kind, event_id, team_id, created_at FROM chat_rooms WHERE event_id = $1`,
		eventID,
	)
}

func (r *postgresChatRepository) GetOrCreateTeamRoom(ctx context.Context, teamID int) (*models.ChatRoom, error) {
	return r.getOrCreateRoom(ctx,
		`INSERT INTO chat_rooms (kind, team_id) VALUES ('team', $1) ON CONFLICT (team_id) DO NOTHING`,
		`SELECT id, kind, event_id, team_id, created_at FROM chat_rooms WHERE team_id = $1`,
		teamID,
	)
}

func (r *postgresChatRepository) GetRoomByID(ctx context.Context, id int) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT id, kind, event_id, team_id, created_at FROM chat_rooms WHERE id = $1`, id), room)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatRoomNotFound
		}
		return nil, fmt.Errorf("failed to get chat room %d: %w", id, err)
	}
	return room, nil
}

func (r *postgresChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (room_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, msg.RoomID, msg.SenderID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

func (r *postgresChatRepository) ListMessages(ctx context.Context, roomID int, before int, limit int) ([]*models.ChatMessage, error) {
	// Страница берётся с конца (ORDER BY id DESC LIMIT n), затем
	// разворачивается: id монотонно растёт вместе со временем создания.
	var rows *sql.Rows
	var err error

	if before > 0 {
		rows, err = r.db.QueryContext(ctx, `
			SELECT m.id, m.room_id, m.sender_id, m.content, m.created_at,
			       u.id, u.nickname, u.avatar_key
			FROM chat_messages m
			JOIN users u ON m.sender_id = u.id
			WHERE m.room_id = $1 AND m.id < $2
			ORDER BY m.id DESC
			LIMIT $3`, roomID, before, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT m.id, m.room_id, m.sender_id, m.content, m.created_at,
			       u.id, u.nickname, u.avatar_key
			FROM chat_messages m
			JOIN users u ON m.sender_id = u.id
			WHERE m.room_id = $1
			ORDER BY m.id DESC
			LIMIT $2`, roomID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		var u models.User
		if scanErr := rows.Scan(
			&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt,
			&u.ID, &u.Nickname, &u.AvatarKey,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", scanErr)
		}
		m.Sender = &u
		messages = append(messages, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Разворот в порядок создания.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
