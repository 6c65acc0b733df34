package models

import "time"

// TeamVisibility соответствует ENUM team_visibility в БД.
type TeamVisibility string

const (
	TeamPublic  TeamVisibility = "public"
	TeamPrivate TeamVisibility = "private"
)

// TeamRole соответствует ENUM team_role в БД.
// Инвариант: в каждой команде ровно один owner.
type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
)

// CanManage сообщает, может ли роль управлять командой
// (подтверждать заявки, создавать события, приглашения).
func (r TeamRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type Team struct {
	ID           int            `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Description  *string        `json:"description,omitempty" db:"description"`
	Visibility   TeamVisibility `json:"visibility" db:"visibility"`
	Region       *string        `json:"region,omitempty" db:"region"`
	InstagramURL *string        `json:"instagram_url,omitempty" db:"instagram_url"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`

	IconKey   *string `json:"-" db:"icon_key"`
	IconURL   *string `json:"icon_url,omitempty" db:"-"`
	HeaderKey *string `json:"-" db:"header_key"`
	HeaderURL *string `json:"header_url,omitempty" db:"-"`

	Members     []TeamMember `json:"members,omitempty" db:"-"`
	MemberCount int          `json:"member_count,omitempty" db:"-"`
}

// TeamMember связывает пользователя с командой. Пара User×Team уникальна.
type TeamMember struct {
	ID        int       `json:"id" db:"id"`
	TeamID    int       `json:"team_id" db:"team_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Role      TeamRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}
