package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/Dosada05/pickleball-platform/storage"
	"golang.org/x/sync/errgroup"
)

type CreateEventInput struct {
	Title           string                 `json:"title"`
	Description     *string                `json:"description"`
	Location        *string                `json:"location"`
	Address         *string                `json:"address"`
	Latitude        *float64               `json:"latitude"`
	Longitude       *float64               `json:"longitude"`
	Region          *string                `json:"region"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time"`
	MaxParticipants *int                   `json:"max_participants"`
	SkillLevel      *string                `json:"skill_level"`
	Price           *int                   `json:"price"`
	Visibility      models.EventVisibility `json:"visibility"`
	CreatorID       int                    `json:"-"`
	TeamID          *int                   `json:"-"`
}

type UpdateEventInput struct {
	Title           *string                 `json:"title"`
	Description     *string                 `json:"description"`
	Location        *string                 `json:"location"`
	Address         *string                 `json:"address"`
	Latitude        *float64                `json:"latitude"`
	Longitude       *float64                `json:"longitude"`
	Region          *string                 `json:"region"`
	StartTime       *time.Time              `json:"start_time"`
	EndTime         *time.Time              `json:"end_time"`
	MaxParticipants *int                    `json:"max_participants"`
	SkillLevel      *string                 `json:"skill_level"`
	Price           *int                    `json:"price"`
	Visibility      *models.EventVisibility `json:"visibility"`
}

type EventService interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error)
	// CreateTeamEvent создаёт событие под командой; актор должен быть
	// owner/admin. Участники команды получают team_event_created.
	CreateTeamEvent(ctx context.Context, teamID int, input CreateEventInput, actorID int) (*models.Event, error)
	GetEventByID(ctx context.Context, eventID, viewerID int) (*models.Event, error)
	ListEvents(ctx context.Context, filter repositories.EventFilter, viewerID int) ([]*models.Event, error)
	UpdateEvent(ctx context.Context, eventID int, input UpdateEventInput, actorID int) (*models.Event, error)
	CloseEvent(ctx context.Context, eventID, actorID int) (*models.Event, error)
	DeleteEvent(ctx context.Context, eventID, actorID int) error

	// Reserve занимает слот. Проверка ёмкости и вставка - один
	// атомарный оператор в репозитории: конкурирующие вызовы не могут
	// вместе превысить max_participants.
	Reserve(ctx context.Context, eventID, userID int) (*models.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, actorID int) error

	// AutoCompleteEvents переводит закончившиеся активные события
	// в completed. Вызывается фоновым планировщиком.
	AutoCompleteEvents(ctx context.Context) error
}

type eventService struct {
	tx              repositories.Transactor
	eventRepo       repositories.EventRepository
	reservationRepo repositories.ReservationRepository
	memberRepo      repositories.MemberRepository
	userRepo        repositories.UserRepository
	teamRepo        repositories.TeamRepository
	notifier        NotificationDispatcher
	uploader        storage.FileUploader
	logger          *slog.Logger
}

func NewEventService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	reservationRepo repositories.ReservationRepository,
	memberRepo repositories.MemberRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	notifier NotificationDispatcher,
	uploader storage.FileUploader,
	logger *slog.Logger,
) EventService {
	return &eventService{
		tx:              tx,
		eventRepo:       eventRepo,
		reservationRepo: reservationRepo,
		memberRepo:      memberRepo,
		userRepo:        userRepo,
		teamRepo:        teamRepo,
		notifier:        notifier,
		uploader:        uploader,
		logger:          logger,
	}
}

func validateEventTimes(start, end time.Time, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrValidationFailed
	}
	if !start.Before(end) {
		return ErrEventInvalidTimeRange
	}
	if start.Before(now) {
		return ErrEventStartInPast
	}
	return nil
}

func (s *eventService) validateInput(input CreateEventInput) error {
	if input.Title == "" {
		return ErrEventTitleRequired
	}
	if err := validateEventTimes(input.StartTime, input.EndTime, time.Now()); err != nil {
		return err
	}
	if input.MaxParticipants != nil && *input.MaxParticipants <= 0 {
		return ErrEventInvalidCapacity
	}
	return nil
}

func (s *eventService) CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	event := newEventFromInput(input)
	event.TeamID = nil
	event.Visibility = models.EventPublic

	if err := s.eventRepo.Create(ctx, nil, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *eventService) CreateTeamEvent(ctx context.Context, teamID int, input CreateEventInput, actorID int) (*models.Event, error) {
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

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	event := newEventFromInput(input)
	event.TeamID = &teamID
	if event.Visibility == "" {
		event.Visibility = models.EventPublic
	}

	// Событие и уведомления участникам команды пишутся одной
	// транзакцией: сорвавшаяся рассылка откатывает и событие.
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.eventRepo.Create(ctx, exec, event); err != nil {
			return err
		}
		members, err := s.memberRepo.ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("failed to list team members: %w", err)
		}
		for _, m := range members {
			if m.UserID == actorID {
				continue
			}
			if err := s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    m.UserID,
				Type:      models.NotifTeamEventCreated,
				RelatedID: &event.ID,
				Title:     "New team event",
				Message:   fmt.Sprintf("Your team scheduled a new event: %s", event.Title),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEventTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create team event: %w", err)
	}
	return event, nil
}

func newEventFromInput(input CreateEventInput) *models.Event {
	return &models.Event{
		Title:           input.Title,
		Description:     input.Description,
		CreatorID:       input.CreatorID,
		Location:        input.Location,
		Address:         input.Address,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Region:          input.Region,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		MaxParticipants: input.MaxParticipants,
		SkillLevel:      input.SkillLevel,
		Price:           input.Price,
		Visibility:      input.Visibility,
	}
}

func (s *eventService) getEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	return event, nil
}

// canView: приватные командные события видны только участникам команды.
func (s *eventService) canView(ctx context.Context, event *models.Event, viewerID int) (bool, error) {
	if !event.IsTeamEvent() || event.Visibility == models.EventPublic {
		return true, nil
	}
	_, err := s.memberRepo.FindByTeamAndUser(ctx, *event.TeamID, viewerID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check membership: %w", err)
}

func (s *eventService) GetEventByID(ctx context.Context, eventID, viewerID int) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	visible, err := s.canView(ctx, event, viewerID)
	if err != nil {
		return nil, err
	}
	if !visible {
		// Приватное событие не раскрываем посторонним.
		return nil, ErrEventNotFound
	}

	// Детали собираются параллельно.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		creator, err := s.userRepo.GetByID(gctx, event.CreatorID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil
			}
			return err
		}
		populateUserDetailsFunc(creator, s.uploader)
		event.Creator = creator
		return nil
	})

	g.Go(func() error {
		reservations, err := s.reservationRepo.ListByEvent(gctx, eventID)
		if err != nil {
			return err
		}
		populateReservationListDetailsFunc(reservations, s.uploader)
		event.Reservations = make([]models.Reservation, 0, len(reservations))
		for _, r := range reservations {
			event.Reservations = append(event.Reservations, *r)
		}
		event.ReservationCount = len(reservations)
		return nil
	})

	if event.IsTeamEvent() {
		teamID := *event.TeamID
		g.Go(func() error {
			team, err := s.teamRepo.GetByID(gctx, teamID)
			if err != nil {
				if errors.Is(err, repositories.ErrTeamNotFound) {
					return nil
				}
				return err
			}
			populateTeamImagesFunc(team, s.uploader)
			event.Team = team
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to populate event %d details: %w", eventID, err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, filter repositories.EventFilter, viewerID int) ([]*models.Event, error) {
	if viewerID > 0 {
		teamIDs, err := s.memberRepo.ListTeamIDsByUser(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list viewer teams: %w", err)
		}
		filter.VisibleToTeamIDs = teamIDs
	}
	events, err := s.eventRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// canManageEvent: личное событие правит создатель, командное -
// owner/admin команды.
func (s *eventService) canManageEvent(ctx context.Context, event *models.Event, actorID int) (bool, error) {
	if event.CreatorID == actorID {
		return true, nil
	}
	if !event.IsTeamEvent() {
		return false, nil
	}
	member, err := s.memberRepo.FindByTeamAndUser(ctx, *event.TeamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return member.Role.CanManage(), nil
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID int, input UpdateEventInput, actorID int) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canManageEvent(ctx, event, actorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrForbiddenOperation
	}

	now := time.Now()
	if event.IsPast(now) {
		// Прошедшие события неизменяемы.
		return nil, ErrEventLocked
	}
	if event.Status != models.EventActive {
		return nil, ErrEventClosed
	}

	// Существенные изменения (время, место) рассылаются держателям слотов.
	material := false

	if input.Title != nil {
		if *input.Title == "" {
			return nil, ErrEventTitleRequired
		}
		event.Title = *input.Title
	}
	if input.Description != nil {
		event.Description = input.Description
	}
	if input.Location != nil {
		event.Location = input.Location
		material = true
	}
	if input.Address != nil {
		event.Address = input.Address
		material = true
	}
	if input.Latitude != nil {
		event.Latitude = input.Latitude
	}
	if input.Longitude != nil {
		event.Longitude = input.Longitude
	}
	if input.Region != nil {
		event.Region = input.Region
	}
	if input.StartTime != nil {
		event.StartTime = *input.StartTime
		material = true
	}
	if input.EndTime != nil {
		event.EndTime = *input.EndTime
		material = true
	}
	if input.StartTime != nil || input.EndTime != nil {
		if err := validateEventTimes(event.StartTime, event.EndTime, now); err != nil {
			return nil, err
		}
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants <= 0 {
			return nil, ErrEventInvalidCapacity
		}
		event.MaxParticipants = input.MaxParticipants
	}
	if input.SkillLevel != nil {
		event.SkillLevel = input.SkillLevel
	}
	if input.Price != nil {
		event.Price = input.Price
	}
	if input.Visibility != nil {
		event.Visibility = *input.Visibility
	}

	var holders []*models.Reservation
	if material {
		holders, err = s.reservationRepo.ListByEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list reservation holders: %w", err)
		}
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.eventRepo.Update(ctx, exec, event); err != nil {
			return err
		}
		for _, r := range holders {
			if r.UserID == actorID {
				continue
			}
			if err := s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    r.UserID,
				Type:      models.NotifEventUpdated,
				RelatedID: &event.ID,
				Title:     "Event updated",
				Message:   fmt.Sprintf("Details of %s have changed", event.Title),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event %d: %w", eventID, err)
	}
	return event, nil
}

func (s *eventService) CloseEvent(ctx context.Context, eventID, actorID int) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canManageEvent(ctx, event, actorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrForbiddenOperation
	}
	if event.Status != models.EventActive {
		// completed - терминальный статус.
		return nil, ErrEventClosed
	}

	if err := s.eventRepo.UpdateStatus(ctx, nil, eventID, models.EventCompleted); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to close event %d: %w", eventID, err)
	}
	event.Status = models.EventCompleted
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID, actorID int) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}

	allowed, err := s.canManageEvent(ctx, event, actorID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbiddenOperation
	}

	holders, err := s.reservationRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list reservation holders: %w", err)
	}

	// Удаление события, каскад резерваций/чата и уведомления бывшим
	// участникам - один атомарный блок.
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, r := range holders {
			if r.UserID == actorID {
				continue
			}
			if err := s.notifier.Dispatch(ctx, exec, &models.Notification{
				UserID:    r.UserID,
				Type:      models.NotifEventCancelledByCreator,
				RelatedID: &event.ID,
				Title:     "Event cancelled",
				Message:   fmt.Sprintf("%s has been cancelled by the organizer", event.Title),
			}); err != nil {
				return err
			}
		}
		return s.eventRepo.Delete(ctx, exec, eventID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to delete event %d: %w", eventID, err)
	}
	return nil
}

func (s *eventService) Reserve(ctx context.Context, eventID, userID int) (*models.Reservation, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if event.Status != models.EventActive {
		return nil, ErrEventClosed
	}
	if event.IsPast(now) {
		return nil, ErrEventLocked
	}
	if event.CreatorID == userID && !event.IsTeamEvent() {
		// Создатель личного события - организатор, слот ему не нужен.
		return nil, ErrForbiddenOperation
	}

	visible, err := s.canView(ctx, event, userID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrEventNotFound
	}

	reservation := &models.Reservation{
		EventID: eventID,
		UserID:  userID,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.reservationRepo.CreateIfCapacity(ctx, exec, reservation); err != nil {
			return err
		}
		if event.CreatorID == userID {
			return nil
		}
		return s.notifier.Dispatch(ctx, exec, &models.Notification{
			UserID:    event.CreatorID,
			Type:      models.NotifEventJoined,
			RelatedID: &event.ID,
			Title:     "New participant",
			Message:   fmt.Sprintf("A player joined %s", event.Title),
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEventCapacityReached):
			return nil, ErrEventFull
		case errors.Is(err, repositories.ErrReservationConflict):
			return nil, ErrAlreadyReserved
		case errors.Is(err, repositories.ErrEventNotFound):
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to reserve spot: %w", err)
	}
	return reservation, nil
}

func (s *eventService) CancelReservation(ctx context.Context, reservationID, actorID int) error {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("failed to get reservation %d: %w", reservationID, err)
	}
	if reservation.UserID != actorID {
		return ErrForbiddenOperation
	}

	event, err := s.getEvent(ctx, reservation.EventID)
	if err != nil {
		return err
	}
	if event.Status != models.EventActive {
		return ErrEventClosed
	}
	if event.IsPast(time.Now()) {
		return ErrEventLocked
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.reservationRepo.Delete(ctx, exec, reservationID); err != nil {
			return err
		}
		if event.CreatorID == actorID {
			return nil
		}
		return s.notifier.Dispatch(ctx, exec, &models.Notification{
			UserID:    event.CreatorID,
			Type:      models.NotifEventCancelled,
			RelatedID: &event.ID,
			Title:     "Reservation cancelled",
			Message:   fmt.Sprintf("A player left %s", event.Title),
		})
	})
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("failed to cancel reservation %d: %w", reservationID, err)
	}
	return nil
}

func (s *eventService) AutoCompleteEvents(ctx context.Context) error {
	completed, err := s.eventRepo.CompleteFinished(ctx)
	if err != nil {
		return fmt.Errorf("failed to auto-complete events: %w", err)
	}
	if completed > 0 && s.logger != nil {
		s.logger.Info("auto-completed finished events", slog.Int64("count", completed))
	}
	return nil
}
