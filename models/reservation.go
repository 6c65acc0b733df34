package models

import "time"

// Reservation занимает один слот события. Пара User×Event уникальна;
// число резерваций не превышает max_participants события.
type Reservation struct {
	ID        int       `json:"id" db:"id"`
	EventID   int       `json:"event_id" db:"event_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}
