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
	ErrJoinRequestNotFound = errors.New("join request not found")
	// ErrJoinRequestConflict - у пользователя уже есть pending-заявка
	// в эту команду (частичный уникальный индекс по status = 'pending').
	ErrJoinRequestConflict = errors.New("pending join request already exists")
)

type JoinRequestRepository interface {
	Create(ctx context.Context, exec SQLExecutor, request *models.TeamJoinRequest) error
	GetByID(ctx context.Context, id int) (*models.TeamJoinRequest, error)
	ListPendingByTeam(ctx context.Context, teamID int) ([]*models.TeamJoinRequest, error)
	// Resolve переводит pending-заявку в конечный статус. Условие
	// status = 'pending' в WHERE гарантирует, что заявка решается один раз.
	Resolve(ctx context.Context, exec SQLExecutor, id int, status models.JoinRequestStatus) error
}

type postgresJoinRequestRepository struct {
	db *sql.DB
}

func NewPostgresJoinRequestRepository(db *sql.DB) JoinRequestRepository {
	return &postgresJoinRequestRepository{db: db}
}

func (r *postgresJoinRequestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresJoinRequestRepository) Create(ctx context.Context, exec SQLExecutor, request *models.TeamJoinRequest) error {
	query := `
		INSERT INTO team_join_requests (team_id, user_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING id, status, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		request.TeamID,
		request.UserID,
	).Scan(&request.ID, &request.Status, &request.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "team_join_requests_pending_key" {
					return ErrJoinRequestConflict
				}
			case "23503":
				if pqErr.Constraint == "team_join_requests_team_id_fkey" {
					return ErrTeamNotFound
				}
			}
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

func (r *postgresJoinRequestRepository) GetByID(ctx context.Context, id int) (*models.TeamJoinRequest, error) {
	query := `SELECT id, team_id, user_id, status, created_at FROM team_join_requests WHERE id = $1`

	req := &models.TeamJoinRequest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.TeamID, &req.UserID, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJoinRequestNotFound
		}
		return nil, fmt.Errorf("failed to get join request %d: %w", id, err)
	}
	return req, nil
}

func (r *postgresJoinRequestRepository) ListPendingByTeam(ctx context.Context, teamID int) ([]*models.TeamJoinRequest, error) {
	query := `
		SELECT jr.id, jr.team_id, jr.user_id, jr.status, jr.created_at,
		       u.id, u.nickname, u.region, u.skill_level, u.avatar_key
		FROM team_join_requests jr
		JOIN users u ON jr.user_id = u.id
		WHERE jr.team_id = $1 AND jr.status = 'pending'
		ORDER BY jr.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending join requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.TeamJoinRequest, 0)
	for rows.Next() {
		var req models.TeamJoinRequest
		var u models.User
		if scanErr := rows.Scan(
			&req.ID, &req.TeamID, &req.UserID, &req.Status, &req.CreatedAt,
			&u.ID, &u.Nickname, &u.Region, &u.SkillLevel, &u.AvatarKey,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan join request row: %w", scanErr)
		}
		req.User = &u
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

func (r *postgresJoinRequestRepository) Resolve(ctx context.Context, exec SQLExecutor, id int, status models.JoinRequestStatus) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	result, err := executor.ExecContext(ctx,
		`UPDATE team_join_requests SET status = $1 WHERE id = $2 AND status = 'pending'`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve join request %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrJoinRequestNotFound)
}
