package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
)

// NotificationDispatcher - сторона записи: сервисы членства и событий
// кладут уведомления через неё в ту же транзакцию, что и сам переход
// состояния. Отдельный интерфейс, чтобы сервисам не тянуть read-API.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error
}

type NotificationService interface {
	NotificationDispatcher
	List(ctx context.Context, userID int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	MarkRead(ctx context.Context, id, userID int) error
	MarkAllRead(ctx context.Context, userID int) error
	// Delete - одностороннее подтверждение: удаление уведомления
	// никогда не откатывает породившее его изменение.
	Delete(ctx context.Context, id, userID int) error
}

type notificationService struct {
	repo repositories.NotificationRepository
}

func NewNotificationService(repo repositories.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) Dispatch(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	if err := s.repo.Create(ctx, exec, n); err != nil {
		return fmt.Errorf("failed to dispatch %s notification to user %d: %w", n.Type, n.UserID, err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID int) ([]*models.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID int) error {
	err := s.repo.MarkRead(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID int) error {
	err := s.repo.Delete(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
