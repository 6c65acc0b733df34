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
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteTokenConflict = errors.New("invite token conflict")
	ErrInviteTeamInvalid   = errors.New("invite team conflict or invalid")
	// ErrInviteConsumed - CAS по used_by не прошёл: приглашение уже
	// погашено или просрочено на момент UPDATE.
	ErrInviteConsumed = errors.New("invite already consumed or expired")
)

type InviteRepository interface {
	// Create создаёт приглашение. Заполняет ID и CreatedAt у invite.
	Create(ctx context.Context, invite *models.TeamInvite) error

	GetByToken(ctx context.Context, token string) (*models.TeamInvite, error)

	// ListActiveByTeam возвращает непогашенные и непросроченные приглашения.
	ListActiveByTeam(ctx context.Context, teamID int) ([]*models.TeamInvite, error)

	// Consume атомарно занимает приглашение для userID:
	// UPDATE проходит только пока used_by IS NULL и срок не истёк.
	// Из двух конкурентных погашений выигрывает ровно одно.
	Consume(ctx context.Context, exec SQLExecutor, token string, userID int) (*models.TeamInvite, error)

	// DeleteExpired удаляет просроченные приглашения, возвращает их число.
	DeleteExpired(ctx context.Context) (int64, error)
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

const inviteColumns = `id, team_id, created_by, token, expires_at, used_by, used_at, created_at`

func scanInvite(row rowScanner, inv *models.TeamInvite) error {
	return row.Scan(
		&inv.ID, &inv.TeamID, &inv.CreatedByID, &inv.Token,
		&inv.ExpiresAt, &inv.UsedByID, &inv.UsedAt, &inv.CreatedAt,
	)
}

func (r *postgresInviteRepository) Create(ctx context.Context, invite *models.TeamInvite) error {
	query := `
		INSERT INTO team_invites (team_id, created_by, token, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		invite.TeamID,
		invite.CreatedByID,
		invite.Token,
		invite.ExpiresAt,
	).Scan(&invite.ID, &invite.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "team_invites_token_key" {
					return ErrInviteTokenConflict
				}
			case "23503":
				if pqErr.Constraint == "team_invites_team_id_fkey" {
					return ErrInviteTeamInvalid
				}
			}
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *postgresInviteRepository) GetByToken(ctx context.Context, token string) (*models.TeamInvite, error) {
	invite := &models.TeamInvite{}
	err := scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM team_invites WHERE token = $1`, token), invite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}
	return invite, nil
}

func (r *postgresInviteRepository) ListActiveByTeam(ctx context.Context, teamID int) ([]*models.TeamInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM team_invites
		WHERE team_id = $1 AND used_by IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites for team %d: %w", teamID, err)
	}
	defer rows.Close()

	invites := make([]*models.TeamInvite, 0)
	for rows.Next() {
		var invite models.TeamInvite
		if scanErr := scanInvite(rows, &invite); scanErr != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", scanErr)
		}
		invites = append(invites, &invite)
	}
	return invites, rows.Err()
}

func (r *postgresInviteRepository) Consume(ctx context.Context, exec SQLExecutor, token string, userID int) (*models.TeamInvite, error) {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}

	query := `
		UPDATE team_invites
		SET used_by = $1, used_at = NOW()
		WHERE token = $2 AND used_by IS NULL AND expires_at > NOW()
		RETURNING ` + inviteColumns

	invite := &models.TeamInvite{}
	err := scanInvite(executor.QueryRowContext(ctx, query, userID, token), invite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteConsumed
		}
		return nil, fmt.Errorf("failed to consume invite: %w", err)
	}
	return invite, nil
}

func (r *postgresInviteRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_invites WHERE expires_at <= NOW() AND used_by IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return result.RowsAffected()
}
