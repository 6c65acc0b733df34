package services

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/storage"
)

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// --- Хелперы для заполнения публичных URL изображений ---

func populateUserDetailsFunc(user *models.User, uploader storage.FileUploader) {
	if user == nil {
		return
	}
	user.PasswordHash = nil // Важно для безопасности
	if user.AvatarKey != nil && *user.AvatarKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*user.AvatarKey)
		if url != "" {
			user.AvatarURL = &url
		}
	}
}

func populateTeamImagesFunc(team *models.Team, uploader storage.FileUploader) {
	if team == nil || uploader == nil {
		return
	}
	if team.IconKey != nil && *team.IconKey != "" {
		url := uploader.GetPublicURL(*team.IconKey)
		if url != "" {
			team.IconURL = &url
		}
	}
	if team.HeaderKey != nil && *team.HeaderKey != "" {
		url := uploader.GetPublicURL(*team.HeaderKey)
		if url != "" {
			team.HeaderURL = &url
		}
	}
}

func populateMemberListDetailsFunc(members []*models.TeamMember, uploader storage.FileUploader) {
	if uploader == nil {
		return
	}
	for _, m := range members {
		if m == nil {
			continue
		}
		populateUserDetailsFunc(m.User, uploader)
	}
}

func populateReservationListDetailsFunc(reservations []*models.Reservation, uploader storage.FileUploader) {
	if uploader == nil {
		return
	}
	for _, r := range reservations {
		if r == nil {
			continue
		}
		populateUserDetailsFunc(r.User, uploader)
	}
}
