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

// TeamImageKind различает иконку и шапку команды.
type TeamImageKind string

const (
	TeamImageIcon   TeamImageKind = "icon"
	TeamImageHeader TeamImageKind = "header"
)

type CreateTeamInput struct {
	Name         string                `json:"name"`
	Description  *string               `json:"description"`
	Visibility   models.TeamVisibility `json:"visibility"`
	Region       *string               `json:"region"`
	InstagramURL *string               `json:"instagram_url"`
	CreatorID    int                   `json:"-"`
}

type UpdateTeamInput struct {
	Name         *string                `json:"name"`
	Description  *string                `json:"description"`
	Visibility   *models.TeamVisibility `json:"visibility"`
	Region       *string                `json:"region"`
	InstagramURL *string                `json:"instagram_url"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	GetTeamByID(ctx context.Context, teamID int) (*models.Team, error)
	ListTeams(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error)
	ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error)
	UpdateTeamDetails(ctx context.Context, teamID int, input UpdateTeamInput, actorID int) (*models.Team, error)
	DeleteTeam(ctx context.Context, teamID, actorID int) error
	UploadTeamImage(ctx context.Context, teamID int, kind TeamImageKind, contentType string, file io.Reader, actorID int) (*models.Team, error)

	// ChangeRole применяет матрицу переходов ролей:
	// owner назначает admin/member любому и может передать владение
	// (сам атомарно становится admin); admin переключает member↔admin
	// для других и не касается владельца; смена собственной роли
	// владельцем запрещена.
	ChangeRole(ctx context.Context, teamID, targetUserID int, newRole models.TeamRole, actorID int) (*models.TeamMember, error)

	// RemoveMember: owner удаляет любого, кроме себя; admin - только
	// рядовых участников; сам участник - себя (выход из команды).
	// Единственный владелец не удаляется без предварительной передачи.
	RemoveMember(ctx context.Context, teamID, targetUserID, actorID int) error
}

type teamService struct {
	tx         repositories.Transactor
	teamRepo   repositories.TeamRepository
	memberRepo repositories.MemberRepository
	notifier   NotificationDispatcher
	uploader   storage.FileUploader
}

func NewTeamService(
	tx repositories.Transactor,
	teamRepo repositories.TeamRepository,
	memberRepo repositories.MemberRepository,
	notifier NotificationDispatcher,
	uploader storage.FileUploader,
) TeamService {
	return &teamService{
		tx:         tx,
		teamRepo:   teamRepo,
		memberRepo: memberRepo,
		notifier:   notifier,
		uploader:   uploader,
	}
}

// requireManager возвращает членство актора, если он owner или admin.
func (s *teamService) requireManager(ctx context.Context, teamID, actorID int) (*models.TeamMember, error) {
	member, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrManagerActionForbidden
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member.Role.CanManage() {
		return nil, ErrManagerActionForbidden
	}
	return member, nil
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}
	if input.Visibility == "" {
		input.Visibility = models.TeamPublic
	}

	team := &models.Team{
		Name:         input.Name,
		Description:  input.Description,
		Visibility:   input.Visibility,
		Region:       input.Region,
		InstagramURL: input.InstagramURL,
	}

	// Команда и членство создателя-владельца создаются одной транзакцией:
	// команды без владельца не существует даже мгновение.
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.teamRepo.Create(ctx, exec, team); err != nil {
			return err
		}
		owner := &models.TeamMember{
			TeamID: team.ID,
			UserID: input.CreatorID,
			Role:   models.RoleOwner,
		}
		return s.memberRepo.Create(ctx, exec, owner)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	team.MemberCount = 1
	return team, nil
}

func (s *teamService) GetTeamByID(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}

	members, err := s.memberRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of team %d: %w", teamID, err)
	}
	populateMemberListDetailsFunc(members, s.uploader)

	team.Members = make([]models.TeamMember, 0, len(members))
	for _, m := range members {
		if m != nil {
			team.Members = append(team.Members, *m)
		}
	}
	populateTeamImagesFunc(team, s.uploader)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, t := range teams {
		populateTeamImagesFunc(t, s.uploader)
	}
	return teams, nil
}

func (s *teamService) ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	members, err := s.memberRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of team %d: %w", teamID, err)
	}
	populateMemberListDetailsFunc(members, s.uploader)
	return members, nil
}

func (s *teamService) UpdateTeamDetails(ctx context.Context, teamID int, input UpdateTeamInput, actorID int) (*models.Team, error) {
	if _, err := s.requireManager(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = *input.Name
	}
	if input.Description != nil {
		team.Description = input.Description
	}
	if input.Visibility != nil {
		team.Visibility = *input.Visibility
	}
	if input.Region != nil {
		team.Region = input.Region
	}
	if input.InstagramURL != nil {
		team.InstagramURL = input.InstagramURL
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to update team %d: %w", teamID, err)
	}
	populateTeamImagesFunc(team, s.uploader)
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, teamID, actorID int) error {
	member, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrOwnerActionForbidden
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if member.Role != models.RoleOwner {
		return ErrOwnerActionForbidden
	}

	// Членства, заявки, приглашения, командные события и чат
	// каскадируются по внешним ключам.
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.teamRepo.Delete(ctx, exec, teamID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to delete team %d: %w", teamID, err)
	}
	return nil
}

func (s *teamService) ChangeRole(ctx context.Context, teamID, targetUserID int, newRole models.TeamRole, actorID int) (*models.TeamMember, error) {
	switch newRole {
	case models.RoleOwner, models.RoleAdmin, models.RoleMember:
	default:
		return nil, ErrValidationFailed
	}

	actor, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrManagerActionForbidden
		}
		return nil, fmt.Errorf("failed to check actor membership: %w", err)
	}

	target, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, targetUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to check target membership: %w", err)
	}

	switch actor.Role {
	case models.RoleOwner:
		if targetUserID == actorID {
			// Владелец не меняет собственную роль: понижение без
			// преемника оставило бы команду без owner.
			return nil, ErrOwnerSelfChangeForbidden
		}
	case models.RoleAdmin:
		if newRole == models.RoleOwner || target.Role == models.RoleOwner {
			return nil, ErrForbiddenOperation
		}
		if targetUserID == actorID {
			return nil, ErrForbiddenOperation
		}
	default:
		return nil, ErrManagerActionForbidden
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if newRole == models.RoleOwner {
			if err := s.memberRepo.TransferOwnership(ctx, exec, teamID, actorID, targetUserID); err != nil {
				return err
			}
		} else {
			if err := s.memberRepo.UpdateRole(ctx, exec, teamID, targetUserID, newRole); err != nil {
				return err
			}
		}
		return s.notifier.Dispatch(ctx, exec, &models.Notification{
			UserID:    targetUserID,
			Type:      models.NotifTeamRoleChanged,
			RelatedID: &teamID,
			Title:     "Team role changed",
			Message:   fmt.Sprintf("Your role has been changed to %s", newRole),
		})
	})
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to change role: %w", err)
	}

	target.Role = newRole
	return target, nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, targetUserID, actorID int) error {
	actor, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrForbiddenOperation
		}
		return fmt.Errorf("failed to check actor membership: %w", err)
	}

	target, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, targetUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to check target membership: %w", err)
	}

	if target.Role == models.RoleOwner {
		// Единственный владелец покидает команду только после передачи.
		return ErrLastOwnerRemoval
	}

	selfLeave := targetUserID == actorID
	if !selfLeave {
		switch actor.Role {
		case models.RoleOwner:
		case models.RoleAdmin:
			if target.Role != models.RoleMember {
				return ErrForbiddenOperation
			}
		default:
			return ErrForbiddenOperation
		}
	}

	managers, err := s.memberRepo.ListManagers(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to list team managers: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.memberRepo.Delete(ctx, exec, teamID, targetUserID); err != nil {
			return err
		}
		for _, m := range managers {
			if m.UserID == targetUserID || m.UserID == actorID {
				continue
			}
			if err := s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    m.UserID,
				Type:      models.NotifTeamMemberLeft,
				RelatedID: &teamID,
				Title:     "Member left the team",
				Message:   "A member has left the team",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func (s *teamService) UploadTeamImage(ctx context.Context, teamID int, kind TeamImageKind, contentType string, file io.Reader, actorID int) (*models.Team, error) {
	if kind != TeamImageIcon && kind != TeamImageHeader {
		return nil, ErrValidationFailed
	}
	if _, err := s.requireManager(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}

	key := fmt.Sprintf("teams/%d/%s/%s", teamID, kind, uuid.NewString())
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team image: %w", err)
	}

	var oldKey *string
	var iconKey, headerKey *string
	switch kind {
	case TeamImageIcon:
		oldKey = team.IconKey
		iconKey = &key
		team.IconKey = &key
	case TeamImageHeader:
		oldKey = team.HeaderKey
		headerKey = &key
		team.HeaderKey = &key
	}

	if err := s.teamRepo.UpdateImageKeys(ctx, teamID, iconKey, headerKey); err != nil {
		return nil, fmt.Errorf("failed to store team image key: %w", err)
	}

	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			// Осиротевший объект не мешает работе, удаление best-effort.
			fmt.Printf("Warning: failed to delete old team image %s: %v\n", *oldKey, delErr)
		}
	}

	populateTeamImagesFunc(team, s.uploader)
	return team, nil
}
