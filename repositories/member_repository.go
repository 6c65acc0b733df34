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
	ErrMemberNotFound    = errors.New("team member not found")
	ErrMemberConflict    = errors.New("user is already a member of this team")
	ErrMemberUserInvalid = errors.New("member user conflict or invalid")
	ErrMemberTeamInvalid = errors.New("member team conflict or invalid")
)

type MemberRepository interface {
	// Create добавляет участника. Пара team_id×user_id уникальна на уровне схемы.
	Create(ctx context.Context, exec SQLExecutor, member *models.TeamMember) error
	FindByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMember, error)
	ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMember, error)
	ListTeamIDsByUser(ctx context.Context, userID int) ([]int, error)
	// ListManagers возвращает владельца и администраторов команды.
	ListManagers(ctx context.Context, teamID int) ([]*models.TeamMember, error)
	UpdateRole(ctx context.Context, exec SQLExecutor, teamID, userID int, role models.TeamRole) error
	Delete(ctx context.Context, exec SQLExecutor, teamID, userID int) error

	// TransferOwnership атомарно меняет владельца: старый становится admin,
	// цель - owner, в пределах переданной транзакции. Ни в какой момент
	// у команды не видно нуля или двух владельцев.
	TransferOwnership(ctx context.Context, exec SQLExecutor, teamID, currentOwnerID, newOwnerID int) error
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

func (r *postgresMemberRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMemberRepository) Create(ctx context.Context, exec SQLExecutor, member *models.TeamMember) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		member.TeamID,
		member.UserID,
		member.Role,
	).Scan(&member.ID, &member.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "team_members_team_id_user_id_key" {
					return ErrMemberConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "team_members_user_id_fkey":
					return ErrMemberUserInvalid
				case "team_members_team_id_fkey":
					return ErrMemberTeamInvalid
				}
			}
		}
		return fmt.Errorf("failed to create team member: %w", err)
	}
	return nil
}

func (r *postgresMemberRepository) FindByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMember, error) {
	query := `SELECT id, team_id, user_id, role, created_at FROM team_members WHERE team_id = $1 AND user_id = $2`

	m := &models.TeamMember{}
	err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(
		&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find team member: %w", err)
	}
	return m, nil
}

func (r *postgresMemberRepository) listQuery(ctx context.Context, query string, args ...interface{}) ([]*models.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.TeamMember, 0)
	for rows.Next() {
		var m models.TeamMember
		var u models.User
		if scanErr := rows.Scan(
			&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt,
			&u.ID, &u.Nickname, &u.Region, &u.SkillLevel, &u.AvatarKey,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team member row: %w", scanErr)
		}
		m.User = &u
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (r *postgresMemberRepository) ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	query := `
		SELECT m.id, m.team_id, m.user_id, m.role, m.created_at,
		       u.id, u.nickname, u.region, u.skill_level, u.avatar_key
		FROM team_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.team_id = $1
		ORDER BY m.created_at ASC`
	return r.listQuery(ctx, query, teamID)
}

func (r *postgresMemberRepository) ListManagers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	query := `
		SELECT m.id, m.team_id, m.user_id, m.role, m.created_at,
		       u.id, u.nickname, u.region, u.skill_level, u.avatar_key
		FROM team_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.team_id = $1 AND m.role IN ('owner', 'admin')
		ORDER BY m.created_at ASC`
	return r.listQuery(ctx, query, teamID)
}

func (r *postgresMemberRepository) ListTeamIDsByUser(ctx context.Context, userID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT team_id FROM team_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team ids for user %d: %w", userID, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresMemberRepository) UpdateRole(ctx context.Context, exec SQLExecutor, teamID, userID int, role models.TeamRole) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE team_members SET role = $1 WHERE team_id = $2 AND user_id = $3`,
		role, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) Delete(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete team member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) TransferOwnership(ctx context.Context, exec SQLExecutor, teamID, currentOwnerID, newOwnerID int) error {
	executor := r.getExecutor(exec)

	// Понижаем текущего владельца только если он всё ещё owner -
	// условие в WHERE защищает от гонки двух параллельных передач.
	result, err := executor.ExecContext(ctx,
		`UPDATE team_members SET role = 'admin' WHERE team_id = $1 AND user_id = $2 AND role = 'owner'`,
		teamID, currentOwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to demote current owner: %w", err)
	}
	if err := checkAffectedRows(result, ErrMemberNotFound); err != nil {
		return err
	}

	result, err = executor.ExecContext(ctx,
		`UPDATE team_members SET role = 'owner' WHERE team_id = $1 AND user_id = $2`,
		teamID, newOwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}
