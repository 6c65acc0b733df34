package models

import "time"

// EventStatus соответствует ENUM event_status в БД.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// EventVisibility используется только для командных событий.
type EventVisibility string

const (
	EventPublic  EventVisibility = "public"
	EventPrivate EventVisibility = "private"
)

// Event - одна игра. Личное событие создаётся пользователем
// (CreatorID заполнен, TeamID nil); командное - командой (TeamID заполнен).
// MaxParticipants == nil означает отсутствие лимита, Price == nil - бесплатно.
type Event struct {
	ID              int             `json:"id" db:"id"`
	Title           string          `json:"title" db:"title"`
	Description     *string         `json:"description,omitempty" db:"description"`
	CreatorID       int             `json:"creator_id" db:"creator_id"`
	TeamID          *int            `json:"team_id,omitempty" db:"team_id"`
	Location        *string         `json:"location,omitempty" db:"location"`
	Address         *string         `json:"address,omitempty" db:"address"`
	Latitude        *float64        `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64        `json:"longitude,omitempty" db:"longitude"`
	Region          *string         `json:"region,omitempty" db:"region"`
	StartTime       time.Time       `json:"start_time" db:"start_time"`
	EndTime         time.Time       `json:"end_time" db:"end_time"`
	MaxParticipants *int            `json:"max_participants,omitempty" db:"max_participants"`
	SkillLevel      *string         `json:"skill_level,omitempty" db:"skill_level"`
	Price           *int            `json:"price,omitempty" db:"price"`
	Status          EventStatus     `json:"status" db:"status"`
	Visibility      EventVisibility `json:"visibility" db:"visibility"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	Creator          *User         `json:"creator,omitempty" db:"-"`
	Team             *Team         `json:"team,omitempty" db:"-"`
	Reservations     []Reservation `json:"reservations,omitempty" db:"-"`
	ReservationCount int           `json:"reservation_count,omitempty" db:"-"`
}

// IsTeamEvent различает варианты события.
func (e *Event) IsTeamEvent() bool {
	return e.TeamID != nil
}

// IsPast сообщает, началось ли событие. Прошедшие события неизменяемы.
func (e *Event) IsPast(now time.Time) bool {
	return e.StartTime.Before(now)
}
