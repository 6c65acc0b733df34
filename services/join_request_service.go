package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/Dosada05/pickleball-platform/storage"
)

type JoinRequestAction string

const (
	JoinRequestApprove JoinRequestAction = "approve"
	JoinRequestReject  JoinRequestAction = "reject"
)

type JoinRequestService interface {
	// RequestToJoin создаёт pending-заявку не-участника в публичную
	// команду. Повторный вызов возвращает ErrAlreadyRequested -
	// уникальный частичный индекс не даёт второй pending-строки.
	RequestToJoin(ctx context.Context, teamID, userID int) (*models.TeamJoinRequest, error)

	ListPending(ctx context.Context, teamID, actorID int) ([]*models.TeamJoinRequest, error)

	// Resolve одобряет или отклоняет заявку. Одобрение атомарно создаёт
	// членство и закрывает заявку; обе ветки уведомляют заявителя
	// в той же транзакции.
	Resolve(ctx context.Context, requestID int, action JoinRequestAction, actorID int) error
}

type joinRequestService struct {
	tx          repositories.Transactor
	requestRepo repositories.JoinRequestRepository
	teamRepo    repositories.TeamRepository
	memberRepo  repositories.MemberRepository
	notifier    NotificationDispatcher
	uploader    storage.FileUploader
}

func NewJoinRequestService(
	tx repositories.Transactor,
	requestRepo repositories.JoinRequestRepository,
	teamRepo repositories.TeamRepository,
	memberRepo repositories.MemberRepository,
	notifier NotificationDispatcher,
	uploader storage.FileUploader,
) JoinRequestService {
	return &joinRequestService{
		tx:          tx,
		requestRepo: requestRepo,
		teamRepo:    teamRepo,
		memberRepo:  memberRepo,
		notifier:    notifier,
		uploader:    uploader,
	}
}

func (s *joinRequestService) RequestToJoin(ctx context.Context, teamID, userID int) (*models.TeamJoinRequest, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	if team.Visibility == models.TeamPrivate {
		// В приватные команды попадают по пригласительной ссылке.
		return nil, ErrForbiddenOperation
	}

	_, err = s.memberRepo.FindByTeamAndUser(ctx, teamID, userID)
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, repositories.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	request := &models.TeamJoinRequest{
		TeamID: teamID,
		UserID: userID,
	}

	// Заявка и уведомления владельцу с администраторами пишутся одной
	// транзакцией: если уведомление не легло, заявки тоже нет.
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.requestRepo.Create(ctx, exec, request); err != nil {
			return err
		}
		managers, err := s.memberRepo.ListManagers(ctx, teamID)
		if err != nil {
			return fmt.Errorf("failed to list team managers: %w", err)
		}
		for _, m := range managers {
			if err := s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    m.UserID,
				Type:      models.NotifTeamJoinRequest,
				RelatedID: &teamID,
				Title:     "New join request",
				Message:   fmt.Sprintf("A player requested to join %s", team.Name),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrJoinRequestConflict):
			return nil, ErrAlreadyRequested
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}

	return request, nil
}

func (s *joinRequestService) ListPending(ctx context.Context, teamID, actorID int) ([]*models.TeamJoinRequest, error) {
	actor, err := s.memberRepo.FindByTeamAndUser(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrManagerActionForbidden
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !actor.Role.CanManage() {
		return nil, ErrManagerActionForbidden
	}

	requests, err := s.requestRepo.ListPendingByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	for _, r := range requests {
		populateUserDetailsFunc(r.User, s.uploader)
	}
	return requests, nil
}

func (s *joinRequestService) Resolve(ctx context.Context, requestID int, action JoinRequestAction, actorID int) error {
	if action != JoinRequestApprove && action != JoinRequestReject {
		return ErrInvalidJoinRequestAction
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrJoinRequestNotFound) {
			return ErrJoinRequestNotFound
		}
		return fmt.Errorf("failed to get join request %d: %w", requestID, err)
	}
	if request.Status != models.JoinRequestPending {
		return ErrJoinRequestNotFound
	}

	actor, err := s.memberRepo.FindByTeamAndUser(ctx, request.TeamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return ErrManagerActionForbidden
		}
		return fmt.Errorf("failed to check actor membership: %w", err)
	}
	if !actor.Role.CanManage() {
		return ErrManagerActionForbidden
	}

	if action == JoinRequestApprove {
		// Членство, закрытие заявки и уведомление - один атомарный блок:
		// при любом сбое заявка остаётся pending.
		err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			member := &models.TeamMember{
				TeamID: request.TeamID,
				UserID: request.UserID,
				Role:   models.RoleMember,
			}
			if err := s.memberRepo.Create(ctx, exec, member); err != nil {
				return err
			}
			if err := s.requestRepo.Resolve(ctx, exec, requestID, models.JoinRequestApproved); err != nil {
				return err
			}
			return s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    request.UserID,
				Type:      models.NotifTeamJoinApproved,
				RelatedID: &request.TeamID,
				Title:     "Join request approved",
				Message:   "Your request to join the team has been approved",
			})
		})
	} else {
		err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if err := s.requestRepo.Resolve(ctx, exec, requestID, models.JoinRequestRejected); err != nil {
				return err
			}
			return s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    request.UserID,
				Type:      models.NotifTeamJoinRejected,
				RelatedID: &request.TeamID,
				Title:     "Join request rejected",
				Message:   "Your request to join the team has been rejected",
			})
		})
	}

	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMemberConflict):
			return ErrAlreadyMember
		case errors.Is(err, repositories.ErrJoinRequestNotFound):
			return ErrJoinRequestNotFound
		}
		return fmt.Errorf("failed to resolve join request %d: %w", requestID, err)
	}
	return nil
}
