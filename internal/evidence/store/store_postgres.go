package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"portfolio/internal/portfolio/models"
	id "portfolio/pkg/domain"
	txcontext "portfolio/pkg/platform/tx"
)

// foreignKeyViolation is raised when a stored document still references the row.
const foreignKeyViolation = "23503"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const instanceColumns = `id, user_id, template_id, sub_template_id, fields, blocks, images, theme_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, inst models.EvidenceInstance) error {
	fields, blocks, err := encodeContent(inst)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO evidence_instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(inst.ID),
		uuid.UUID(inst.UserID),
		uuid.UUID(inst.TemplateID),
		nullableSubTemplate(inst.SubTemplateID),
		fields,
		blocks,
		pq.Array(inst.Images),
		inst.ThemeID,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("create evidence instance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, inst models.EvidenceInstance) error {
	fields, blocks, err := encodeContent(inst)
	if err != nil {
		return err
	}
	query := `
		UPDATE evidence_instances
		SET sub_template_id = $2, fields = $3, blocks = $4, images = $5, theme_id = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(inst.ID),
		nullableSubTemplate(inst.SubTemplateID),
		fields,
		blocks,
		pq.Array(inst.Images),
		inst.ThemeID,
		inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update evidence instance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evidence instance rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, instanceID id.InstanceID) (models.EvidenceInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM evidence_instances WHERE id = $1`
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(instanceID))
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EvidenceInstance{}, ErrNotFound
		}
		return models.EvidenceInstance{}, fmt.Errorf("find evidence instance: %w", err)
	}
	return inst, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]models.EvidenceInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM evidence_instances WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list evidence instances: %w", err)
	}
	defer rows.Close()

	var out []models.EvidenceInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence instance: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence instances: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, instanceID id.InstanceID) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM evidence_instances WHERE id = $1`, uuid.UUID(instanceID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrConflict
		}
		return fmt.Errorf("delete evidence instance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evidence instance rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (models.EvidenceInstance, error) {
	var (
		inst                    models.EvidenceInstance
		rawID, rawUser, rawTmpl uuid.UUID
		rawSub                  uuid.NullUUID
		fields, blocks          []byte
		images                  pq.StringArray
	)
	if err := row.Scan(&rawID, &rawUser, &rawTmpl, &rawSub, &fields, &blocks, &images,
		&inst.ThemeID, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return models.EvidenceInstance{}, err
	}
	inst.ID = id.InstanceID(rawID)
	inst.UserID = id.UserID(rawUser)
	inst.TemplateID = id.TemplateID(rawTmpl)
	if rawSub.Valid {
		inst.SubTemplateID = id.SubTemplateID(rawSub.UUID)
	}
	if err := json.Unmarshal(fields, &inst.Fields); err != nil {
		return models.EvidenceInstance{}, fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal(blocks, &inst.Blocks); err != nil {
		return models.EvidenceInstance{}, fmt.Errorf("decode blocks: %w", err)
	}
	inst.Images = []string(images)
	return inst, nil
}

func encodeContent(inst models.EvidenceInstance) (fields, blocks []byte, err error) {
	if inst.Fields == nil {
		inst.Fields = map[string]string{}
	}
	if fields, err = json.Marshal(inst.Fields); err != nil {
		return nil, nil, fmt.Errorf("encode fields: %w", err)
	}
	if blocks, err = json.Marshal(inst.Blocks); err != nil {
		return nil, nil, fmt.Errorf("encode blocks: %w", err)
	}
	return fields, blocks, nil
}

func nullableSubTemplate(sub id.SubTemplateID) uuid.NullUUID {
	if sub.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(sub), Valid: true}
}
