package models

import "time"

// ChatRoomKind различает комнаты событий и команд.
type ChatRoomKind string

const (
	RoomEvent ChatRoomKind = "event"
	RoomTeam  ChatRoomKind = "team"
)

// ChatRoom существует 1:1 со своим событием или командой
// и создаётся лениво при первом обращении.
type ChatRoom struct {
	ID        int          `json:"id" db:"id"`
	Kind      ChatRoomKind `json:"kind" db:"kind"`
	EventID   *int         `json:"event_id,omitempty" db:"event_id"`
	TeamID    *int         `json:"team_id,omitempty" db:"team_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// ChatMessage - запись в комнате. Только добавление, без правки и удаления.
type ChatMessage struct {
	ID        int       `json:"id" db:"id"`
	RoomID    int       `json:"room_id" db:"room_id"`
	SenderID  int       `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Sender *User `json:"sender,omitempty" db:"-"`
}
