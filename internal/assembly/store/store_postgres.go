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

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore persists documents with their referenced instances. Save must
// run inside a transaction when called with IncrementGenerations so a counter
// never moves without a stored document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, doc models.Document) error {
	pages, err := json.Marshal(doc.Pages)
	if err != nil {
		return fmt.Errorf("encode document pages: %w", err)
	}
	exec := txcontext.Executor(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, scope_standard, theme_id, page_count, pages, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.UserID),
		doc.Scope.Standard,
		doc.ThemeID,
		doc.PageCount,
		pages,
		doc.Content,
		doc.CreatedAt,
	)
	if err != nil {
		return translate(err, "insert document")
	}

	for pos, instanceID := range doc.InstanceIDs {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO document_instances (document_id, instance_id, position)
			VALUES ($1, $2, $3)
		`, uuid.UUID(doc.ID), uuid.UUID(instanceID), pos)
		if err != nil {
			return translate(err, "insert document instance")
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, documentID id.DocumentID) (models.Document, error) {
	exec := txcontext.Executor(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, user_id, scope_standard, theme_id, page_count, pages, content, created_at
		FROM documents WHERE id = $1
	`, uuid.UUID(documentID))
	doc, err := scanDocument(row, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Document{}, ErrNotFound
		}
		return models.Document{}, fmt.Errorf("find document: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT instance_id FROM document_instances WHERE document_id = $1 ORDER BY position
	`, uuid.UUID(documentID))
	if err != nil {
		return models.Document{}, fmt.Errorf("list document instances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return models.Document{}, fmt.Errorf("scan document instance: %w", err)
		}
		doc.InstanceIDs = append(doc.InstanceIDs, id.InstanceID(raw))
	}
	if err := rows.Err(); err != nil {
		return models.Document{}, fmt.Errorf("iterate document instances: %w", err)
	}
	return doc, nil
}

// ListByUser returns the user's documents newest first, without content.
func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]models.Document, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, user_id, scope_standard, theme_id, page_count, pages, NULL::bytea, created_at
		FROM documents WHERE user_id = $1 ORDER BY created_at DESC, id DESC
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) IsReferenced(ctx context.Context, instanceID id.InstanceID) (bool, error) {
	var exists bool
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_instances WHERE instance_id = $1)`,
		uuid.UUID(instanceID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document references: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) IncrementGenerations(ctx context.Context, userID id.UserID) (int64, error) {
	var count int64
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO generation_counters (user_id, count) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET count = generation_counters.count + 1
		RETURNING count
	`, uuid.UUID(userID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment generation counter: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Generations(ctx context.Context, userID id.UserID) (int64, error) {
	var count int64
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT count FROM generation_counters WHERE user_id = $1`, uuid.UUID(userID),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation counter: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, withContent bool) (models.Document, error) {
	var (
		doc            models.Document
		rawID, rawUser uuid.UUID
		pages, content []byte
	)
	if err := row.Scan(&rawID, &rawUser, &doc.Scope.Standard, &doc.ThemeID, &doc.PageCount,
		&pages, &content, &doc.CreatedAt); err != nil {
		return models.Document{}, err
	}
	doc.ID = id.DocumentID(rawID)
	doc.UserID = id.UserID(rawUser)
	if err := json.Unmarshal(pages, &doc.Pages); err != nil {
		return models.Document{}, fmt.Errorf("decode pages: %w", err)
	}
	if withContent {
		doc.Content = content
	}
	return doc, nil
}

func translate(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation, foreignKeyViolation:
			return ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
