package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/lib/pq"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationConflict = errors.New("user already holds a reservation for this event")
	// ErrEventCapacityReached - условная вставка не прошла:
	// число резерваций достигло max_participants.
	ErrEventCapacityReached = errors.New("event capacity reached")
)

type ReservationRepository interface {
	// CreateIfCapacity занимает слот под блокировкой строки события:
	// сначала SELECT ... FOR UPDATE, затем условная вставка, пока
	// COUNT(резерваций) < max_participants (NULL - без лимита).
	// Вызывать только внутри транзакции: блокировка выстраивает
	// конкурентные брони одного события в очередь, и проверка ёмкости
	// видит вставки соперников, уже зафиксированные к моменту снятия
	// блокировки.
	CreateIfCapacity(ctx context.Context, exec SQLExecutor, res *models.Reservation) error
	GetByID(ctx context.Context, id int) (*models.Reservation, error)
	FindByEventAndUser(ctx context.Context, eventID, userID int) (*models.Reservation, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Reservation, error)
	CountByEvent(ctx context.Context, eventID int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresReservationRepository struct {
	db *sql.DB
}

func NewPostgresReservationRepository(db *sql.DB) ReservationRepository {
	return &postgresReservationRepository{db: db}
}

func (r *postgresReservationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresReservationRepository) CreateIfCapacity(ctx context.Context, exec SQLExecutor, res *models.Reservation) error {
	run := r.getExecutor(exec)

	// Без блокировки один INSERT..SELECT не спасает на READ COMMITTED:
	// снимок каждого оператора не видит незафиксированную вставку
	// соперника, и две конкурентные брони на последний слот проходят
	// обе. FOR UPDATE сериализует брони по событию.
	var lockedID int
	err := run.QueryRowContext(ctx,
		`SELECT id FROM events WHERE id = $1 AND status = 'active' FOR UPDATE`,
		res.EventID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Событие закрыто или исчезло. Сервис различает эти случаи
			// предварительным чтением.
			return ErrEventCapacityReached
		}
		return fmt.Errorf("failed to lock event %d: %w", res.EventID, err)
	}

	query := `
		INSERT INTO reservations (event_id, user_id)
		SELECT e.id, $2
		FROM events e
		WHERE e.id = $1
		  AND (e.max_participants IS NULL
		       OR (SELECT COUNT(*) FROM reservations r WHERE r.event_id = e.id) < e.max_participants)
		RETURNING id, created_at`

	err = run.QueryRowContext(ctx, query, res.EventID, res.UserID).
		Scan(&res.ID, &res.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Ноль вставленных строк под блокировкой: ёмкость исчерпана.
			return ErrEventCapacityReached
		}
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "reservations_event_id_user_id_key" {
					return ErrReservationConflict
				}
			case "23503":
				if pqErr.Constraint == "reservations_event_id_fkey" {
					return ErrEventNotFound
				}
			}
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *postgresReservationRepository) GetByID(ctx context.Context, id int) (*models.Reservation, error) {
	query := `SELECT id, event_id, user_id, created_at FROM reservations WHERE id = $1`

	res := &models.Reservation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.EventID, &res.UserID, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return res, nil
}

func (r *postgresReservationRepository) FindByEventAndUser(ctx context.Context, eventID, userID int) (*models.Reservation, error) {
	query := `SELECT id, event_id, user_id, created_at FROM reservations WHERE event_id = $1 AND user_id = $2`

	res := &models.Reservation{}
	err := r.db.QueryRowContext(ctx, query, eventID, userID).Scan(
		&res.ID, &res.EventID, &res.UserID, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return res, nil
}

func (r *postgresReservationRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Reservation, error) {
	query := `
		SELECT r.id, r.event_id, r.user_id, r.created_at,
		       u.id, u.nickname, u.region, u.skill_level, u.avatar_key
		FROM reservations r
		JOIN users u ON r.user_id = u.id
		WHERE r.event_id = $1
		ORDER BY r.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations for event %d: %w", eventID, err)
	}
	defer rows.Close()

	reservations := make([]*models.Reservation, 0)
	for rows.Next() {
		var res models.Reservation
		var u models.User
		if scanErr := rows.Scan(
			&res.ID, &res.EventID, &res.UserID, &res.CreatedAt,
			&u.ID, &u.Nickname, &u.Region, &u.SkillLevel, &u.AvatarKey,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", scanErr)
		}
		res.User = &u
		reservations = append(reservations, &res)
	}
	return reservations, rows.Err()
}

func (r *postgresReservationRepository) CountByEvent(ctx context.Context, eventID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations for event %d: %w", eventID, err)
	}
	return count, nil
}

func (r *postgresReservationRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrReservationNotFound)
}
