package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/saralhq/saral/internal/core/domain"
)

func newConvRepoWithMock(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ConversationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestLatestByDocumentReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newConvRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, document_id, messages").
		WithArgs("doc-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestByDocument(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestByDocumentUnmarshalsMessages(t *testing.T) {
	repo, mock, done := newConvRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "document_id", "messages", "language", "created_at", "updated_at"}).
		AddRow("conv-1", "doc-1",
			[]byte(`[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`),
			"tamil", now, now)

	mock.ExpectQuery("SELECT id, document_id, messages").
		WithArgs("doc-1").
		WillReturnRows(rows)

	conv, err := repo.LatestByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("LatestByDocument() error = %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[1].Role != domain.RoleAssistant || conv.Messages[1].Content != "hello" {
		t.Fatalf("unexpected message: %+v", conv.Messages[1])
	}
	if conv.Language != domain.LanguageTamil {
		t.Fatalf("unexpected language: %s", conv.Language)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newConvRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE conversations").
		WithArgs("missing", sqlmock.AnyArg(), "english", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "missing", []domain.Message{}, domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInsertsTranscript(t *testing.T) {
	repo, mock, done := newConvRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:         "conv-1",
		DocumentID: "doc-1",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "hi", Timestamp: now},
		},
		Language:  domain.LanguageBengali,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("conv-1", "doc-1", sqlmock.AnyArg(), "bengali", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
