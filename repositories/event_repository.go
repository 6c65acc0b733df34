package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/lib/pq"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrEventTeamInvalid = errors.New("event team conflict or invalid")
)

// EventFilter ограничивает выборку списка событий.
type EventFilter struct {
	Region     *string
	SkillLevel *string
	Status     *models.EventStatus
	TeamID     *int
	// UpcomingOnly оставляет только события с start_time в будущем.
	UpcomingOnly bool
	// VisibleToTeamIDs: при выборке командных событий приватные видны
	// только участникам перечисленных команд. nil - только публичные.
	VisibleToTeamIDs []int
}

const eventColumns = `e.id, e.title, e.description, e.creator_id, e.team_id,
	e.location, e.address, e.latitude, e.longitude, e.region,
	e.start_time, e.end_time, e.max_participants, e.skill_level, e.price,
	e.status, e.visibility, e.created_at`

type EventRepository interface {
	Create(ctx context.Context, exec SQLExecutor, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context, filter EventFilter) ([]*models.Event, error)
	Update(ctx context.Context, exec SQLExecutor, event *models.Event) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	// CompleteFinished переводит активные события с прошедшим end_time
	// в completed. Возвращает количество затронутых строк.
	CompleteFinished(ctx context.Context) (int64, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func scanEvent(row rowScanner, e *models.Event) error {
	return row.Scan(
		&e.ID, &e.Title, &e.Description, &e.CreatorID, &e.TeamID,
		&e.Location, &e.Address, &e.Latitude, &e.Longitude, &e.Region,
		&e.StartTime, &e.EndTime, &e.MaxParticipants, &e.SkillLevel, &e.Price,
		&e.Status, &e.Visibility, &e.CreatedAt,
	)
}

func (r *postgresEventRepository) Create(ctx context.Context, exec SQLExecutor, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, creator_id, team_id, location, address,
			latitude, longitude, region, start_time, end_time, max_participants,
			skill_level, price, status, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'active', $15)
		RETURNING id, status, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		event.Title, event.Description, event.CreatorID, event.TeamID,
		event.Location, event.Address, event.Latitude, event.Longitude, event.Region,
		event.StartTime, event.EndTime, event.MaxParticipants,
		event.SkillLevel, event.Price, event.Visibility,
	).Scan(&event.ID, &event.Status, &event.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "events_team_id_fkey" {
			return ErrEventTeamInvalid
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `,
		       (SELECT COUNT(*) FROM reservations res WHERE res.event_id = e.id) AS reservation_count
		FROM events e
		WHERE e.id = $1`

	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Description, &e.CreatorID, &e.TeamID,
		&e.Location, &e.Address, &e.Latitude, &e.Longitude, &e.Region,
		&e.StartTime, &e.EndTime, &e.MaxParticipants, &e.SkillLevel, &e.Price,
		&e.Status, &e.Visibility, &e.CreatedAt, &e.ReservationCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return e, nil
}

func (r *postgresEventRepository) List(ctx context.Context, filter EventFilter) ([]*models.Event, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT ` + eventColumns + `,
		       (SELECT COUNT(*) FROM reservations res WHERE res.event_id = e.id) AS reservation_count
		FROM events e
		WHERE 1=1`)

	args := make([]interface{}, 0, 5)
	argCounter := 1

	addCondition := func(cond string, value interface{}) {
		queryBuilder.WriteString(fmt.Sprintf(cond, argCounter))
		args = append(args, value)
		argCounter++
	}

	if filter.Region != nil {
		addCondition(" AND e.region = $%d", *filter.Region)
	}
	if filter.SkillLevel != nil {
		addCondition(" AND e.skill_level = $%d", *filter.SkillLevel)
	}
	if filter.Status != nil {
		addCondition(" AND e.status = $%d", *filter.Status)
	}
	if filter.TeamID != nil {
		addCondition(" AND e.team_id = $%d", *filter.TeamID)
	}
	if filter.UpcomingOnly {
		queryBuilder.WriteString(" AND e.start_time > NOW()")
	}

	// Приватные командные события видны только участникам их команд.
	if len(filter.VisibleToTeamIDs) > 0 {
		queryBuilder.WriteString(fmt.Sprintf(
			" AND (e.team_id IS NULL OR e.visibility = 'public' OR e.team_id = ANY($%d))", argCounter))
		args = append(args, pq.Array(filter.VisibleToTeamIDs))
		argCounter++
	} else {
		queryBuilder.WriteString(" AND (e.team_id IS NULL OR e.visibility = 'public')")
	}

	queryBuilder.WriteString(" ORDER BY e.start_time ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var e models.Event
		if scanErr := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.CreatorID, &e.TeamID,
			&e.Location, &e.Address, &e.Latitude, &e.Longitude, &e.Region,
			&e.StartTime, &e.EndTime, &e.MaxParticipants, &e.SkillLevel, &e.Price,
			&e.Status, &e.Visibility, &e.CreatedAt, &e.ReservationCount,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", scanErr)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *postgresEventRepository) Update(ctx context.Context, exec SQLExecutor, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, address = $4,
			latitude = $5, longitude = $6, region = $7, start_time = $8,
			end_time = $9, max_participants = $10, skill_level = $11,
			price = $12, visibility = $13
		WHERE id = $14`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		event.Title, event.Description, event.Location, event.Address,
		event.Latitude, event.Longitude, event.Region, event.StartTime,
		event.EndTime, event.MaxParticipants, event.SkillLevel,
		event.Price, event.Visibility, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", event.ID, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE events SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) CompleteFinished(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = 'completed' WHERE status = 'active' AND end_time <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to complete finished events: %w", err)
	}
	return result.RowsAffected()
}
