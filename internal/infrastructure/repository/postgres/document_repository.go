package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/saralhq/saral/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	file_url TEXT NOT NULL DEFAULT '',
	file_type TEXT NOT NULL,
	storage_key TEXT NOT NULL DEFAULT '',
	original_text TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL,
	status TEXT NOT NULL,
	simplified_summary TEXT NOT NULL DEFAULT '',
	key_points JSONB NOT NULL DEFAULT '[]'::jsonb,
	medical_severity TEXT NOT NULL DEFAULT '',
	legal_rights_summary TEXT NOT NULL DEFAULT '',
	suggested_next_steps TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	messages JSONB NOT NULL DEFAULT '[]'::jsonb,
	language TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_document ON conversations(document_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	keyPointsJSON, err := json.Marshal(keyPointsOrEmpty(doc.KeyPoints))
	if err != nil {
		return fmt.Errorf("marshal key points: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, title, category, file_url, file_type, storage_key, original_text, language, status,
	simplified_summary, key_points, medical_severity, legal_rights_summary, suggested_next_steps,
	error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`,
		doc.ID, doc.Title, string(doc.Category), doc.FileURL, doc.FileType, doc.StorageKey,
		doc.OriginalText, string(doc.Language), string(doc.Status),
		doc.SimplifiedSummary, keyPointsJSON, doc.MedicalSeverity, doc.LegalRightsSummary,
		doc.SuggestedNextSteps, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, category, file_url, file_type, storage_key, original_text, language, status,
	simplified_summary, key_points, medical_severity, legal_rights_summary, suggested_next_steps,
	error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	query := `
SELECT id, title, category, file_url, file_type, storage_key, original_text, language, status,
	simplified_summary, key_points, medical_severity, legal_rights_summary, suggested_next_steps,
	error_message, created_at, updated_at
FROM documents
ORDER BY created_at DESC
`
	args := []any{}
	if limit > 0 {
		query += "LIMIT $1\n"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRowAffected(res, "update status", id)
}

// SaveAnalysis transitions an enqueued document to its analyzed form in a
// single statement so readers never observe a half-written result.
func (r *DocumentRepository) SaveAnalysis(ctx context.Context, id, fileURL, originalText string, analysis domain.Analysis) error {
	keyPointsJSON, err := json.Marshal(keyPointsOrEmpty(analysis.KeyPoints))
	if err != nil {
		return fmt.Errorf("marshal key points: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET file_url = $2, original_text = $3, simplified_summary = $4, key_points = $5,
	medical_severity = $6, legal_rights_summary = $7, suggested_next_steps = $8,
	status = $9, error_message = '', updated_at = $10
WHERE id = $1
`, id, fileURL, originalText, analysis.SimplifiedSummary, keyPointsJSON,
		analysis.MedicalSeverity, analysis.LegalRightsSummary, analysis.SuggestedNextSteps,
		string(domain.StatusCompleted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return requireRowAffected(res, "save analysis", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var keyPointsRaw []byte
	var category, language, status string

	err := row.Scan(
		&doc.ID, &doc.Title, &category, &doc.FileURL, &doc.FileType, &doc.StorageKey,
		&doc.OriginalText, &language, &status,
		&doc.SimplifiedSummary, &keyPointsRaw, &doc.MedicalSeverity, &doc.LegalRightsSummary,
		&doc.SuggestedNextSteps, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(keyPointsRaw) > 0 {
		if err := json.Unmarshal(keyPointsRaw, &doc.KeyPoints); err != nil {
			return nil, fmt.Errorf("unmarshal key points: %w", err)
		}
	}
	if doc.KeyPoints == nil {
		doc.KeyPoints = []string{}
	}
	doc.Category = domain.Category(category)
	doc.Language = domain.Language(language)
	doc.Status = domain.ProcessingStatus(status)
	return &doc, nil
}

func requireRowAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id %s", id))
	}
	return nil
}

func keyPointsOrEmpty(points []string) []string {
	if points == nil {
		return []string{}
	}
	return points
}
