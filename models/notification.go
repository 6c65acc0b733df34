package models

import "time"

// NotificationType - закрытый набор типов уведомлений.
type NotificationType string

const (
	NotifEventJoined             NotificationType = "event_joined"
	NotifEventCancelled          NotificationType = "event_cancelled"
	NotifEventUpdated            NotificationType = "event_updated"
	NotifEventCancelledByCreator NotificationType = "event_cancelled_by_creator"
	NotifEventReminder           NotificationType = "event_reminder"
	NotifEventChatMessage        NotificationType = "event_chat_message"
	NotifTeamJoinRequest         NotificationType = "team_join_request"
	NotifTeamMemberLeft          NotificationType = "team_member_left"
	NotifTeamJoinApproved        NotificationType = "team_join_approved"
	NotifTeamJoinRejected        NotificationType = "team_join_rejected"
	NotifTeamRoleChanged         NotificationType = "team_role_changed"
	NotifTeamEventCreated        NotificationType = "team_event_created"
	NotifTeamChatMessage         NotificationType = "team_chat_message"
)

// Notification создаётся системой как побочный эффект переходов состояния.
// RelatedID указывает на событие или команду в зависимости от типа.
type Notification struct {
	ID        int              `json:"id" db:"id"`
	UserID    int              `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	RelatedID *int             `json:"related_id,omitempty" db:"related_id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
