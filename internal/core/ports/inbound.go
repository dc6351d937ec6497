package ports

import (
	"context"

	"github.com/saralhq/saral/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the analysis pipeline.
type DocumentAnalyzer interface {
	// ProcessDocument runs the full pipeline synchronously. A document is
	// persisted only on success, always with status completed.
	ProcessDocument(ctx context.Context, upload domain.FileUpload, category domain.Category, language domain.Language) (*domain.Document, error)
	// EnqueueAnalysis persists a pending document plus the raw file and
	// hands the run to the worker.
	EnqueueAnalysis(ctx context.Context, upload domain.FileUpload, category domain.Category, language domain.Language) (*domain.Document, error)
	// ProcessByID runs the pipeline for a previously enqueued document.
	ProcessByID(ctx context.Context, documentID string) error
}

// ChatService is the inbound contract for per-document chat sessions.
type ChatService interface {
	LoadSession(ctx context.Context, documentID string) (*domain.Conversation, error)
	SendTurn(ctx context.Context, documentID, userText string, language domain.Language) (*domain.Conversation, error)
	VoiceTurn(ctx context.Context, documentID string, audio []byte, mimeType string, language domain.Language) (*domain.Conversation, domain.SpeechAudio, error)
	Speak(ctx context.Context, text string, language domain.Language) (domain.SpeechAudio, error)
}

// DocumentLibrary is the inbound read model over stored documents.
type DocumentLibrary interface {
	ListDocuments(ctx context.Context, filter domain.LibraryFilter) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	Stats(ctx context.Context) (*domain.LibraryStats, error)
}
