package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
)

const (
	inviteTokenLength = 16             // Длина токена в байтах (32 символа в hex)
	inviteDuration    = 24 * time.Hour // Срок действия приглашения
)

var ErrInviteTokenGeneration = errors.New("failed to generate unique invite token")

type InviteService interface {
	// CreateInvite выпускает одноразовую ссылку на 24 часа.
	// Доступно owner/admin команды.
	CreateInvite(ctx context.Context, teamID, actorID int) (*models.TeamInvite, error)
	ListTeamInvites(ctx context.Context, teamID, actorID int) ([]*models.TeamInvite, error)

	// RedeemInvite погашает токен и делает пользователя участником.
	// Из конкурентных погашений одного токена выигрывает ровно одно -
	// CAS по used_by в репозитории.
	RedeemInvite(ctx context.Context, token string, userID int) (*models.TeamMember, error)

	// PurgeExpired удаляет просроченные приглашения (фоновый планировщик).
	PurgeExpired(ctx context.Context) (int64, error)
}

type inviteService struct {
	tx         repositories.Transactor
	inviteRepo repositories.InviteRepository
	memberRepo repositories.MemberRepository
	teamRepo   repositories.TeamRepository
}

func NewInviteService(
	tx repositories.Transactor,
	inviteRepo repositories.InviteRepository,
	memberRepo repositories.MemberRepository,
	teamRepo repositories.TeamRepository,
) InviteService {
	return &inviteService{
		tx:         tx,
		inviteRepo: inviteRepo,
		memberRepo: memberRepo,
		teamRepo:   teamRepo,
	}
}

func (s *inviteService) requireManager(ctx context.Context, teamID, actorID int) error {
	member, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrManagerActionForbidden
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member.Role.CanManage() {
		return ErrManagerActionForbidden
	}
	return nil
}

func (s *inviteService) CreateInvite(ctx context.Context, teamID, actorID int) (*models.TeamInvite, error) {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	if err := s.requireManager(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	maxAttempts := 3 // Попытки сгенерировать уникальный токен
	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := generateSecureToken(inviteTokenLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInviteTokenGeneration, err)
		}

		invite := &models.TeamInvite{
			TeamID:      teamID,
			CreatedByID: actorID,
			Token:       token,
			ExpiresAt:   time.Now().Add(inviteDuration),
		}

		err = s.inviteRepo.Create(ctx, invite)
		if err == nil {
			return invite, nil
		}
		if errors.Is(err, repositories.ErrInviteTokenConflict) {
			continue // Коллизия токена, пробуем снова
		}
		if errors.Is(err, repositories.ErrInviteTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrInviteTokenGeneration, maxAttempts)
}

func (s *inviteService) ListTeamInvites(ctx context.Context, teamID, actorID int) ([]*models.TeamInvite, error) {
	if err := s.requireManager(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	invites, err := s.inviteRepo.ListActiveByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites for team %d: %w", teamID, err)
	}
	return invites, nil
}

func (s *inviteService) RedeemInvite(ctx context.Context, token string, userID int) (*models.TeamMember, error) {
	invite, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}

	if invite.UsedByID != nil {
		return nil, ErrInviteUsed
	}
	if time.Now().After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	if _, err := s.memberRepo.FindByTeamAndUser(ctx, invite.TeamID, userID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, repositories.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.TeamMember{
		TeamID: invite.TeamID,
		UserID: userID,
		Role:   models.RoleMember,
	}

	// Погашение и членство - один атомарный блок. CAS в Consume
	// разводит конкурентные попытки: проигравшая получает ноль строк.
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.inviteRepo.Consume(ctx, exec, token, userID); err != nil {
			return err
		}
		return s.memberRepo.Create(ctx, exec, member)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInviteConsumed):
			// CAS не прошёл: за время между чтением и UPDATE токен
			// погасили или он истёк. Различаем по свежему состоянию.
			if refreshed, refreshErr := s.inviteRepo.GetByToken(ctx, token); refreshErr == nil {
				if refreshed.UsedByID != nil {
					return nil, ErrInviteUsed
				}
			}
			return nil, ErrInviteExpired
		case errors.Is(err, repositories.ErrMemberConflict):
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to redeem invite: %w", err)
	}
	return member, nil
}

func (s *inviteService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.inviteRepo.DeleteExpired(ctx)
}
