package models

import "time"

// TeamInvite - одноразовая пригласительная ссылка со сроком действия 24 часа.
// Первое погашение занимает UsedBy; повторные попытки получают конфликт.
type TeamInvite struct {
	ID          int        `json:"id" db:"id"`
	TeamID      int        `json:"team_id" db:"team_id"`
	CreatedByID int        `json:"created_by" db:"created_by"`
	Token       string     `json:"token" db:"token"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	UsedByID    *int       `json:"used_by,omitempty" db:"used_by"`
	UsedAt      *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

func (i *TeamInvite) IsValid(now time.Time) bool {
	return i.UsedByID == nil && now.Before(i.ExpiresAt)
}
