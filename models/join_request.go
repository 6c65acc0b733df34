package models

import "time"

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// TeamJoinRequest - заявка на вступление в команду.
// Инвариант: не более одной pending-заявки на пару User×Team.
type TeamJoinRequest struct {
	ID        int               `json:"id" db:"id"`
	TeamID    int               `json:"team_id" db:"team_id"`
	UserID    int               `json:"user_id" db:"user_id"`
	Status    JoinRequestStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
	Team *Team `json:"team,omitempty" db:"-"`
}
