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

// PostgresStore reads the catalog from PostgreSQL. Catalog rows are seeded by
// administrative tooling; this store never writes them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListStandards(ctx context.Context) ([]models.Standard, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT number, title, description, weight
		FROM standards
		ORDER BY number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list standards: %w", err)
	}
	defer rows.Close()

	var out []models.Standard
	for rows.Next() {
		var st models.Standard
		if err := rows.Scan(&st.Number, &st.Title, &st.Description, &st.Weight); err != nil {
			return nil, fmt.Errorf("scan standard: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetStandard(ctx context.Context, number int) (models.Standard, error) {
	var st models.Standard
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT number, title, description, weight
		FROM standards
		WHERE number = $1
	`, number).Scan(&st.Number, &st.Title, &st.Description, &st.Weight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Standard{}, ErrNotFound
		}
		return models.Standard{}, fmt.Errorf("get standard: %w", err)
	}
	return st, nil
}

const templateColumns = `id, standard_number, title, description, block_labels, blocks, fields`

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID id.TemplateID) (models.EvidenceTemplate, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM evidence_templates WHERE id = $1`,
		uuid.UUID(templateID),
	)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EvidenceTemplate{}, ErrNotFound
		}
		return models.EvidenceTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]models.EvidenceTemplate, error) {
	return s.queryTemplates(ctx,
		`SELECT `+templateColumns+` FROM evidence_templates ORDER BY standard_number, title, id`)
}

func (s *PostgresStore) ListTemplatesByStandard(ctx context.Context, number int) ([]models.EvidenceTemplate, error) {
	return s.queryTemplates(ctx,
		`SELECT `+templateColumns+` FROM evidence_templates WHERE standard_number = $1 ORDER BY title, id`,
		number)
}

func (s *PostgresStore) queryTemplates(ctx context.Context, query string, args ...any) ([]models.EvidenceTemplate, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []models.EvidenceTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const subTemplateColumns = `id, template_id, title, description, blocks, fields, images, stages, subjects`

func (s *PostgresStore) GetSubTemplate(ctx context.Context, subID id.SubTemplateID) (models.EvidenceSubTemplate, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+subTemplateColumns+` FROM evidence_sub_templates WHERE id = $1`,
		uuid.UUID(subID),
	)
	st, err := scanSubTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EvidenceSubTemplate{}, ErrNotFound
		}
		return models.EvidenceSubTemplate{}, fmt.Errorf("get sub-template: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListSubTemplates(ctx context.Context) ([]models.EvidenceSubTemplate, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+subTemplateColumns+` FROM evidence_sub_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sub-templates: %w", err)
	}
	defer rows.Close()

	var out []models.EvidenceSubTemplate
	for rows.Next() {
		st, err := scanSubTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-template: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (models.EvidenceTemplate, error) {
	var (
		t                          models.EvidenceTemplate
		rawID                      uuid.UUID
		labels, blocks, fieldsJSON []byte
	)
	if err := row.Scan(&rawID, &t.StandardNumber, &t.Title, &t.Description, &labels, &blocks, &fieldsJSON); err != nil {
		return models.EvidenceTemplate{}, err
	}
	t.ID = id.TemplateID(rawID)
	if err := unmarshalOptional(labels, &t.BlockLabels); err != nil {
		return models.EvidenceTemplate{}, fmt.Errorf("decode block labels: %w", err)
	}
	if err := unmarshalOptional(blocks, &t.Blocks); err != nil {
		return models.EvidenceTemplate{}, fmt.Errorf("decode blocks: %w", err)
	}
	if err := unmarshalOptional(fieldsJSON, &t.Fields); err != nil {
		return models.EvidenceTemplate{}, fmt.Errorf("decode fields: %w", err)
	}
	return t, nil
}

func scanSubTemplate(row scanner) (models.EvidenceSubTemplate, error) {
	var (
		st                 models.EvidenceSubTemplate
		rawID, rawTemplate uuid.UUID
		blocks, fieldsJSON []byte
	)
	if err := row.Scan(&rawID, &rawTemplate, &st.Title, &st.Description, &blocks, &fieldsJSON,
		pq.Array(&st.Images), pq.Array(&st.Stages), pq.Array(&st.Subjects)); err != nil {
		return models.EvidenceSubTemplate{}, err
	}
	st.ID = id.SubTemplateID(rawID)
	st.TemplateID = id.TemplateID(rawTemplate)
	if err := unmarshalOptional(blocks, &st.Blocks); err != nil {
		return models.EvidenceSubTemplate{}, fmt.Errorf("decode blocks: %w", err)
	}
	if err := unmarshalOptional(fieldsJSON, &st.Fields); err != nil {
		return models.EvidenceSubTemplate{}, fmt.Errorf("decode fields: %w", err)
	}
	return st, nil
}

func unmarshalOptional(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
