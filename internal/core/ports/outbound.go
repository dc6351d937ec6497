package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/saralhq/saral/internal/core/domain"
)

// JSONSchema is a raw JSON-schema object sent to the model gateway to
// constrain extraction or generation output.
type JSONSchema map[string]any

// ModelGateway is the hosted service handling file storage, structured
// text extraction and model invocation.
type ModelGateway interface {
	UploadFile(ctx context.Context, filename, mimeType string, content []byte) (fileURL string, err error)
	ExtractStructured(ctx context.Context, fileURL string, schema JSONSchema) (domain.ExtractionResult, error)
	InvokeStructured(ctx context.Context, prompt string, schema JSONSchema) (json.RawMessage, error)
	InvokeText(ctx context.Context, prompt string) (string, error)
}

// SpeechGateway converts between audio and text for voice chat turns.
type SpeechGateway interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, langCode string) (string, error)
	Synthesize(ctx context.Context, text, langCode string) (domain.SpeechAudio, error)
}

// DocumentStore persists document records.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, limit int) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error
	SaveAnalysis(ctx context.Context, id, fileURL, originalText string, analysis domain.Analysis) error
}

// ConversationStore persists chat transcripts, one active conversation
// per document.
type ConversationStore interface {
	LatestByDocument(ctx context.Context, documentID string) (*domain.Conversation, error)
	Create(ctx context.Context, conv *domain.Conversation) error
	Update(ctx context.Context, id string, messages []domain.Message, language domain.Language) error
}

// ObjectStorage holds raw uploads awaiting background analysis.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries analysis requests from the api to the worker.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, documentID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text locally, used as a fallback when the
// gateway's extraction endpoint fails.
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, content []byte) (string, error)
}
