package models

import "time"

// AuthProvider указывает, через какого провайдера пользователь вошёл впервые.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	ProviderApple  AuthProvider = "apple"
)

type User struct {
	ID           int          `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Nickname     string       `json:"nickname" db:"nickname"`
	PasswordHash *string      `json:"-" db:"password_hash"`
	Provider     AuthProvider `json:"provider" db:"provider"`
	ProviderID   *string      `json:"-" db:"provider_id"`

	Region          *string  `json:"region,omitempty" db:"region"`
	SkillLevel      *string  `json:"skill_level,omitempty" db:"skill_level"`
	ExperienceYears *int     `json:"experience_years,omitempty" db:"experience_years"`
	DuprSingles     *float64 `json:"dupr_singles,omitempty" db:"dupr_singles"`
	DuprDoubles     *float64 `json:"dupr_doubles,omitempty" db:"dupr_doubles"`
	Paddle          *string  `json:"paddle,omitempty" db:"paddle"`
	Bio             *string  `json:"bio,omitempty" db:"bio"`
	InstagramURL    *string  `json:"instagram_url,omitempty" db:"instagram_url"`
	YoutubeURL      *string  `json:"youtube_url,omitempty" db:"youtube_url"`
	Wins            int      `json:"wins" db:"wins"`
	Losses          int      `json:"losses" db:"losses"`

	AvatarKey *string `json:"-" db:"avatar_key"`
	AvatarURL *string `json:"avatar_url,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
