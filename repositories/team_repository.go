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
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name conflict")
)

// TeamFilter ограничивает выборку списка команд.
type TeamFilter struct {
	Region     *string
	Visibility *models.TeamVisibility
}

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context, filter TeamFilter) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateImageKeys(ctx context.Context, id int, iconKey, headerKey *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO teams (name, description, visibility, region, instagram_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		team.Name,
		team.Description,
		team.Visibility,
		team.Region,
		team.InstagramURL,
	).Scan(&team.ID, &team.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == "teams_name_key" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.visibility, t.region, t.instagram_url,
		       t.icon_key, t.header_key, t.created_at,
		       (SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id) AS member_count
		FROM teams t
		WHERE t.id = $1`

	team := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.Description, &team.Visibility, &team.Region,
		&team.InstagramURL, &team.IconKey, &team.HeaderKey, &team.CreatedAt,
		&team.MemberCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	return team, nil
}

func (r *postgresTeamRepository) List(ctx context.Context, filter TeamFilter) ([]*models.Team, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT t.id, t.name, t.description, t.visibility, t.region, t.instagram_url,
		       t.icon_key, t.header_key, t.created_at,
		       (SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id) AS member_count
		FROM teams t
		WHERE 1=1`)

	args := make([]interface{}, 0, 2)
	argCounter := 1

	if filter.Region != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND t.region = $%d", argCounter))
		args = append(args, *filter.Region)
		argCounter++
	}
	if filter.Visibility != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND t.visibility = $%d", argCounter))
		args = append(args, *filter.Visibility)
		argCounter++
	}
	queryBuilder.WriteString(" ORDER BY t.created_at DESC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		var team models.Team
		if scanErr := rows.Scan(
			&team.ID, &team.Name, &team.Description, &team.Visibility, &team.Region,
			&team.InstagramURL, &team.IconKey, &team.HeaderKey, &team.CreatedAt,
			&team.MemberCount,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, &team)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams
		SET name = $1, description = $2, visibility = $3, region = $4, instagram_url = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		team.Name, team.Description, team.Visibility, team.Region, team.InstagramURL, team.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == "teams_name_key" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to update team %d: %w", team.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateImageKeys(ctx context.Context, id int, iconKey, headerKey *string) error {
	query := `
		UPDATE teams
		SET icon_key = COALESCE($1, icon_key), header_key = COALESCE($2, header_key)
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, iconKey, headerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update image keys for team %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
