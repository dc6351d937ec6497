package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saralhq/saral/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// LatestByDocument returns the newest conversation for a document. By
// convention a document carries a single conversation, but older rows may
// survive a replacement, so the newest one wins.
func (r *ConversationRepository) LatestByDocument(ctx context.Context, documentID string) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, messages, language, created_at, updated_at
FROM conversations
WHERE document_id = $1
ORDER BY created_at DESC
LIMIT 1
`, documentID)

	var conv domain.Conversation
	var messagesRaw []byte
	var language string

	err := row.Scan(&conv.ID, &conv.DocumentID, &messagesRaw, &language, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConversationNotFound, "latest conversation", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	if err := json.Unmarshal(messagesRaw, &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	conv.Language = domain.Language(language)
	return &conv, nil
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversations (id, document_id, messages, language, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, conv.ID, conv.DocumentID, messagesJSON, string(conv.Language), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// Update replaces the stored transcript wholesale. Concurrent writers are
// serialized upstream per document, so last write wins here.
func (r *ConversationRepository) Update(ctx context.Context, id string, messages []domain.Message, language domain.Language) error {
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE conversations
SET messages = $2, language = $3, updated_at = $4
WHERE id = $1
`, id, messagesJSON, string(language), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConversationNotFound, "update conversation", fmt.Errorf("id %s", id))
	}
	return nil
}
