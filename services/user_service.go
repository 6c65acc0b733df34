package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/Dosada05/pickleball-platform/storage"
	"github.com/google/uuid"
)

type UpdateProfileInput struct {
	Nickname        *string  `json:"nickname"`
	Region          *string  `json:"region"`
	SkillLevel      *string  `json:"skill_level"`
	ExperienceYears *int     `json:"experience_years"`
	DuprSingles     *float64 `json:"dupr_singles"`
	DuprDoubles     *float64 `json:"dupr_doubles"`
	Paddle          *string  `json:"paddle"`
	Bio             *string  `json:"bio"`
	InstagramURL    *string  `json:"instagram_url"`
	YoutubeURL      *string  `json:"youtube_url"`
	Wins            *int     `json:"wins"`
	Losses          *int     `json:"losses"`
}

type UserService interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int, contentType string, file io.Reader) (*models.User, error)
	// DeleteAccount удаляет пользователя; принадлежащие ему строки
	// каскадируются на уровне схемы.
	DeleteAccount(ctx context.Context, userID int) error
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
}

func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader) UserService {
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
	}
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	populateUserDetailsFunc(user, s.uploader)
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if input.Nickname != nil {
		user.Nickname = *input.Nickname
	}
	if input.Region != nil {
		user.Region = input.Region
	}
	if input.SkillLevel != nil {
		user.SkillLevel = input.SkillLevel
	}
	if input.ExperienceYears != nil {
		user.ExperienceYears = input.ExperienceYears
	}
	if input.DuprSingles != nil {
		user.DuprSingles = input.DuprSingles
	}
	if input.DuprDoubles != nil {
		user.DuprDoubles = input.DuprDoubles
	}
	if input.Paddle != nil {
		user.Paddle = input.Paddle
	}
	if input.Bio != nil {
		user.Bio = input.Bio
	}
	if input.InstagramURL != nil {
		user.InstagramURL = input.InstagramURL
	}
	if input.YoutubeURL != nil {
		user.YoutubeURL = input.YoutubeURL
	}
	if input.Wins != nil {
		user.Wins = *input.Wins
	}
	if input.Losses != nil {
		user.Losses = *input.Losses
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserNicknameConflict) {
			return nil, ErrUserNicknameConflict
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}

	populateUserDetailsFunc(user, s.uploader)
	return user, nil
}

func (s *userService) UploadAvatar(ctx context.Context, userID int, contentType string, file io.Reader) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	key := fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	oldKey := user.AvatarKey
	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &key); err != nil {
		return nil, fmt.Errorf("failed to store avatar key: %w", err)
	}
	user.AvatarKey = &key

	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			// Осиротевший объект не мешает работе, удаление best-effort.
			fmt.Printf("Warning: failed to delete old avatar %s: %v\n", *oldKey, delErr)
		}
	}

	populateUserDetailsFunc(user, s.uploader)
	return user, nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID int) error {
	err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	return nil
}
