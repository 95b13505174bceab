package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	txcontext "portfolio/pkg/platform/tx"
)

// PostgresStore persists user profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, p models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, name, school, stage, subjects, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			school = EXCLUDED.school,
			stage = EXCLUDED.stage,
			subjects = EXCLUDED.subjects,
			updated_at = EXCLUDED.updated_at
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.UserID), p.Name, p.School, p.Stage, pq.Array(p.Subjects), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (models.UserProfile, error) {
	var (
		p     models.UserProfile
		rawID uuid.UUID
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT user_id, name, school, stage, subjects, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, uuid.UUID(userID)).Scan(&rawID, &p.Name, &p.School, &p.Stage, pq.Array(&p.Subjects), &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserProfile{}, ErrNotFound
		}
		return models.UserProfile{}, fmt.Errorf("find profile: %w", err)
	}
	p.UserID = id.UserID(rawID)
	return p, nil
}
