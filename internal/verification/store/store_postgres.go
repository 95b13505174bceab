package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"portfolio/internal/verification/models"
	id "portfolio/pkg/domain"
	txcontext "portfolio/pkg/platform/tx"
)

// PostgresStore persists verification records in PostgreSQL. Rows are never
// updated; they disappear only with their evidence instance.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec models.Record) error {
	query := `
		INSERT INTO verification_records (token, instance_id, title, category, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		rec.Token, uuid.UUID(rec.InstanceID), rec.Title, rec.Category, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create verification record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create verification record rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (models.Record, error) {
	return s.findOne(ctx, `
		SELECT token, instance_id, title, category, created_at
		FROM verification_records
		WHERE token = $1
	`, token)
}

func (s *PostgresStore) FindByInstance(ctx context.Context, instanceID id.InstanceID) (models.Record, error) {
	return s.findOne(ctx, `
		SELECT token, instance_id, title, category, created_at
		FROM verification_records
		WHERE instance_id = $1
	`, uuid.UUID(instanceID))
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (models.Record, error) {
	var (
		rec   models.Record
		rawID uuid.UUID
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, arg).
		Scan(&rec.Token, &rawID, &rec.Title, &rec.Category, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, ErrNotFound
		}
		return models.Record{}, fmt.Errorf("find verification record: %w", err)
	}
	rec.InstanceID = id.InstanceID(rawID)
	return rec, nil
}

func (s *PostgresStore) DeleteByInstance(ctx context.Context, instanceID id.InstanceID) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM verification_records WHERE instance_id = $1`, uuid.UUID(instanceID))
	if err != nil {
		return fmt.Errorf("delete verification record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete verification record rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
