package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
)

// AnalyzeDocumentUseCase orchestrates upload, extraction, prompt selection,
// model invocation and persistence for a single uploaded file. The
// synchronous path persists nothing until every fatal step has succeeded;
// the enqueue path persists a pending record and defers the run to the
// worker.
type AnalyzeDocumentUseCase struct {
	store    ports.DocumentStore
	gateway  ports.ModelGateway
	fallback ports.TextExtractor
	rawFiles ports.ObjectStorage
	queue    ports.MessageQueue
}

func NewAnalyzeDocumentUseCase(
	store ports.DocumentStore,
	gateway ports.ModelGateway,
	fallback ports.TextExtractor,
	rawFiles ports.ObjectStorage,
	queue ports.MessageQueue,
) *AnalyzeDocumentUseCase {
	return &AnalyzeDocumentUseCase{
		store:    store,
		gateway:  gateway,
		fallback: fallback,
		rawFiles: rawFiles,
		queue:    queue,
	}
}

func (uc *AnalyzeDocumentUseCase) ProcessDocument(
	ctx context.Context,
	upload domain.FileUpload,
	category domain.Category,
	language domain.Language,
) (*domain.Document, error) {
	language = normalizeLanguage(language)
	if err := validateUpload(upload, category, language); err != nil {
		return nil, err
	}

	fileURL, err := uc.uploadFile(ctx, upload)
	if err != nil {
		return nil, err
	}

	text := uc.extractText(ctx, fileURL, upload)

	analysis, err := uc.analyze(ctx, category, language, text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:                 uuid.NewString(),
		Title:              upload.Filename,
		Category:           category,
		FileURL:            fileURL,
		FileType:           upload.MimeType,
		OriginalText:       text,
		Language:           language,
		Status:             domain.StatusCompleted,
		SimplifiedSummary:  analysis.SimplifiedSummary,
		KeyPoints:          analysis.KeyPoints,
		MedicalSeverity:    analysis.MedicalSeverity,
		LegalRightsSummary: analysis.LegalRightsSummary,
		SuggestedNextSteps: analysis.SuggestedNextSteps,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}
	return doc, nil
}

func (uc *AnalyzeDocumentUseCase) EnqueueAnalysis(
	ctx context.Context,
	upload domain.FileUpload,
	category domain.Category,
	language domain.Language,
) (*domain.Document, error) {
	language = normalizeLanguage(language)
	if err := validateUpload(upload, category, language); err != nil {
		return nil, err
	}
	if uc.rawFiles == nil || uc.queue == nil {
		return nil, errors.New("background analysis is not configured")
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename))
	if err := uc.rawFiles.Save(ctx, storageKey, bytes.NewReader(upload.Content), upload.Size, upload.MimeType); err != nil {
		return nil, fmt.Errorf("save raw upload: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         id,
		Title:      upload.Filename,
		Category:   category,
		FileType:   upload.MimeType,
		Language:   language,
		Status:     domain.StatusPending,
		KeyPoints:  []string{},
		StorageKey: storageKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create pending document: %w", err)
	}

	if err := uc.queue.PublishAnalysisRequested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish analysis request: %w", err)
	}
	return doc, nil
}

func (uc *AnalyzeDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.store.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.store.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.runEnqueued(ctx, doc); err != nil {
		if failErr := uc.store.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.store.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *AnalyzeDocumentUseCase) runEnqueued(ctx context.Context, doc *domain.Document) error {
	content, err := uc.loadRawFile(ctx, doc.StorageKey)
	if err != nil {
		return err
	}

	upload := domain.FileUpload{
		Filename: doc.Title,
		MimeType: doc.FileType,
		Size:     int64(len(content)),
		Content:  content,
	}

	fileURL, err := uc.uploadFile(ctx, upload)
	if err != nil {
		return err
	}

	text := uc.extractText(ctx, fileURL, upload)

	analysis, err := uc.analyze(ctx, doc.Category, doc.Language, text)
	if err != nil {
		return err
	}

	if err := uc.store.SaveAnalysis(ctx, doc.ID, fileURL, text, analysis); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (uc *AnalyzeDocumentUseCase) loadRawFile(ctx context.Context, key string) ([]byte, error) {
	if uc.rawFiles == nil {
		return nil, errors.New("raw file storage is not configured")
	}
	if key == "" {
		return nil, errors.New("document has no stored source file")
	}
	reader, err := uc.rawFiles.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open raw upload: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read raw upload: %w", err)
	}
	return content, nil
}

func (uc *AnalyzeDocumentUseCase) uploadFile(ctx context.Context, upload domain.FileUpload) (string, error) {
	fileURL, err := uc.gateway.UploadFile(ctx, upload.Filename, upload.MimeType, upload.Content)
	if err != nil {
		return "", fmt.Errorf("upload file to gateway: %w", err)
	}
	return fileURL, nil
}

// extractText is the only recoverable step: a gateway failure falls back to
// local extraction, and a fallback failure yields empty text. The pipeline
// never aborts here.
func (uc *AnalyzeDocumentUseCase) extractText(ctx context.Context, fileURL string, upload domain.FileUpload) string {
	if upload.MimeType != "application/pdf" && !strings.HasPrefix(upload.MimeType, "image/") {
		return ""
	}

	result, err := uc.gateway.ExtractStructured(ctx, fileURL, extractionSchema())
	if err == nil && result.Succeeded() {
		return result.TextContent()
	}

	if uc.fallback != nil {
		if text, fbErr := uc.fallback.Extract(ctx, upload.Filename, upload.MimeType, upload.Content); fbErr == nil {
			return text
		}
	}
	return ""
}

func (uc *AnalyzeDocumentUseCase) analyze(
	ctx context.Context,
	category domain.Category,
	language domain.Language,
	text string,
) (domain.Analysis, error) {
	plan, err := buildAnalysisPlan(category, language, text)
	if err != nil {
		return domain.Analysis{}, err
	}

	raw, err := uc.gateway.InvokeStructured(ctx, plan.prompt, plan.schema)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("invoke model: %w", err)
	}

	// Fields absent from the response default to empty; a missing optional
	// field never fails the run.
	var analysis domain.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("parse analysis response: %w", err)
	}
	analysis.Sanitize(category)
	return analysis, nil
}

func validateUpload(upload domain.FileUpload, category domain.Category, language domain.Language) error {
	if len(upload.Content) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is required"))
	}
	if !domain.AcceptedMimeType(upload.MimeType) {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("please upload a PDF, JPEG, or PNG file"))
	}
	size := upload.Size
	if size == 0 {
		size = int64(len(upload.Content))
	}
	if size > domain.MaxUploadSize {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file size must be less than 10MB"))
	}
	if category == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("category is required"))
	}
	if !category.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("unknown category: "+string(category)))
	}
	if !language.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("unknown language: "+string(language)))
	}
	return nil
}

func normalizeLanguage(language domain.Language) domain.Language {
	if language == "" {
		return domain.LanguageEnglish
	}
	return language
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
