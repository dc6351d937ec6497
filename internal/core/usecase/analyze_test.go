package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
)

type analyzeStoreFake struct {
	created     *domain.Document
	createErr   error
	doc         *domain.Document
	statusCalls []domain.ProcessingStatus
	statusErrs  []string
	savedID     string
	savedText   string
	savedURL    string
	saved       domain.Analysis
	saveErr     error
}

func (f *analyzeStoreFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *analyzeStoreFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *analyzeStoreFake) List(context.Context, int) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *analyzeStoreFake) UpdateStatus(_ context.Context, _ string, status domain.ProcessingStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, status)
	f.statusErrs = append(f.statusErrs, errMessage)
	return nil
}

func (f *analyzeStoreFake) SaveAnalysis(_ context.Context, id, fileURL, originalText string, analysis domain.Analysis) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedID = id
	f.savedURL = fileURL
	f.savedText = originalText
	f.saved = analysis
	return nil
}

type analyzeGatewayFake struct {
	uploadCalls int
	uploadURL   string
	uploadErr   error

	extractResult domain.ExtractionResult
	extractErr    error

	invokeCalls  int
	invokePrompt string
	invokeSchema ports.JSONSchema
	invokeRaw    string
	invokeErr    error
}

func (f *analyzeGatewayFake) UploadFile(context.Context, string, string, []byte) (string, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if f.uploadURL == "" {
		return "https://files.example.com/abc", nil
	}
	return f.uploadURL, nil
}

func (f *analyzeGatewayFake) ExtractStructured(_ context.Context, _ string, _ ports.JSONSchema) (domain.ExtractionResult, error) {
	if f.extractErr != nil {
		return domain.ExtractionResult{}, f.extractErr
	}
	return f.extractResult, nil
}

func (f *analyzeGatewayFake) InvokeStructured(_ context.Context, prompt string, schema ports.JSONSchema) (json.RawMessage, error) {
	f.invokeCalls++
	f.invokePrompt = prompt
	f.invokeSchema = schema
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return json.RawMessage(f.invokeRaw), nil
}

func (f *analyzeGatewayFake) InvokeText(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

type fallbackExtractorFake struct {
	text string
	err  error
}

func (f *fallbackExtractorFake) Extract(context.Context, string, string, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type rawStorageFake struct {
	savedKey string
	saved    []byte
	saveErr  error
	content  []byte
	openErr  error
}

func (f *rawStorageFake) Save(_ context.Context, key string, data io.Reader, _ int64, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.saved = raw
	return nil
}

func (f *rawStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

type analyzeQueueFake struct {
	published []string
	err       error
}

func (f *analyzeQueueFake) PublishAnalysisRequested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *analyzeQueueFake) SubscribeAnalysisRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func pdfUpload(size int) domain.FileUpload {
	return domain.FileUpload{
		Filename: "report.pdf",
		MimeType: "application/pdf",
		Size:     int64(size),
		Content:  bytes.Repeat([]byte{0x1}, size),
	}
}

func successfulExtraction(text string) domain.ExtractionResult {
	return domain.ExtractionResult{
		Status: domain.ExtractionStatusSuccess,
		Output: map[string]any{"text_content": text},
	}
}

func TestProcessDocumentRejectsUnsupportedTypeBeforeUpload(t *testing.T) {
	gateway := &analyzeGatewayFake{}
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, gateway, nil, nil, nil)

	upload := domain.FileUpload{Filename: "notes.docx", MimeType: "application/msword", Size: 128, Content: []byte("x")}
	_, err := uc.ProcessDocument(context.Background(), upload, domain.CategoryLegal, domain.LanguageEnglish)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if gateway.uploadCalls != 0 {
		t.Fatalf("expected no upload call, got %d", gateway.uploadCalls)
	}
}

func TestProcessDocumentRejectsOversizedFile(t *testing.T) {
	gateway := &analyzeGatewayFake{}
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, gateway, nil, nil, nil)

	_, err := uc.ProcessDocument(context.Background(), pdfUpload(domain.MaxUploadSize+1), domain.CategoryLegal, domain.LanguageEnglish)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if gateway.uploadCalls != 0 {
		t.Fatalf("expected no upload call, got %d", gateway.uploadCalls)
	}
}

func TestProcessDocumentRejectsMissingCategory(t *testing.T) {
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, &analyzeGatewayFake{}, nil, nil, nil)

	_, err := uc.ProcessDocument(context.Background(), pdfUpload(64), "", domain.LanguageEnglish)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessDocumentMedicalScenario(t *testing.T) {
	store := &analyzeStoreFake{}
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("Patient has mild fever..."),
		invokeRaw: `{
			"simplified_summary": "You have a mild fever.",
			"key_points": ["Temperature slightly high", "No serious findings"],
			"medical_severity": "20% - Low",
			"suggested_next_steps": "Rest and consult a doctor if fever persists."
		}`,
	}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(2<<20), domain.CategoryMedical, domain.LanguageHindi)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", doc.Status)
	}
	if doc.OriginalText != "Patient has mild fever..." {
		t.Fatalf("unexpected original text: %q", doc.OriginalText)
	}
	if doc.SimplifiedSummary != "You have a mild fever." {
		t.Fatalf("unexpected summary: %q", doc.SimplifiedSummary)
	}
	if doc.MedicalSeverity != "20% - Low" {
		t.Fatalf("unexpected severity: %q", doc.MedicalSeverity)
	}
	if doc.SuggestedNextSteps != "Rest and consult a doctor if fever persists." {
		t.Fatalf("unexpected next steps: %q", doc.SuggestedNextSteps)
	}
	if doc.LegalRightsSummary != "" {
		t.Fatalf("legal rights must be empty for medical documents, got %q", doc.LegalRightsSummary)
	}
	if store.created == nil || store.created.ID != doc.ID {
		t.Fatalf("expected persisted document")
	}
	if !strings.Contains(gateway.invokePrompt, "Hindi") {
		t.Fatalf("expected prompt to request Hindi, got %q", gateway.invokePrompt)
	}
	if _, ok := gateway.invokeSchema["properties"].(map[string]any)["medical_severity"]; !ok {
		t.Fatalf("expected medical schema to request medical_severity")
	}
}

func TestProcessDocumentLegalExcludesMedicalFields(t *testing.T) {
	store := &analyzeStoreFake{}
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("NOTICE OF EVICTION..."),
		invokeRaw: `{
			"simplified_summary": "This is an eviction notice.",
			"key_points": ["You have 30 days"],
			"legal_rights_summary": "Tenant protection laws may apply.",
			"medical_severity": "should never appear",
			"suggested_next_steps": "Consult a lawyer."
		}`,
	}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(1024), domain.CategoryLegal, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if doc.LegalRightsSummary != "Tenant protection laws may apply." {
		t.Fatalf("unexpected rights summary: %q", doc.LegalRightsSummary)
	}
	if doc.MedicalSeverity != "" {
		t.Fatalf("medical severity must be dropped for legal documents, got %q", doc.MedicalSeverity)
	}
}

func TestProcessDocumentGenericCategorySchema(t *testing.T) {
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("loan agreement"),
		invokeRaw:     `{"simplified_summary": "A loan.", "key_points": []}`,
	}
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, gateway, nil, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(1024), domain.CategoryFinancial, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	props := gateway.invokeSchema["properties"].(map[string]any)
	if _, ok := props["medical_severity"]; ok {
		t.Fatalf("generic schema must not request medical_severity")
	}
	if _, ok := props["legal_rights_summary"]; ok {
		t.Fatalf("generic schema must not request legal_rights_summary")
	}
	if doc.MedicalSeverity != "" || doc.LegalRightsSummary != "" {
		t.Fatalf("category-specific fields must be empty, got %+v", doc)
	}
}

func TestProcessDocumentExtractionFailureIsAbsorbed(t *testing.T) {
	store := &analyzeStoreFake{}
	gateway := &analyzeGatewayFake{
		extractResult: domain.ExtractionResult{Status: domain.ExtractionStatusFailure},
		invokeRaw:     `{"simplified_summary": "s", "key_points": ["k"]}`,
	}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(512), domain.CategoryAcademic, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if doc.OriginalText != "" {
		t.Fatalf("expected empty original text, got %q", doc.OriginalText)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", doc.Status)
	}
}

func TestProcessDocumentExtractionErrorUsesLocalFallback(t *testing.T) {
	gateway := &analyzeGatewayFake{
		extractErr: errors.New("extraction service down"),
		invokeRaw:  `{"simplified_summary": "s", "key_points": []}`,
	}
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, gateway, &fallbackExtractorFake{text: "local text"}, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(512), domain.CategoryGovernment, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if doc.OriginalText != "local text" {
		t.Fatalf("expected fallback text, got %q", doc.OriginalText)
	}
}

func TestProcessDocumentUploadErrorAborts(t *testing.T) {
	store := &analyzeStoreFake{}
	gateway := &analyzeGatewayFake{uploadErr: errors.New("storage unavailable")}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, nil, nil)

	_, err := uc.ProcessDocument(context.Background(), pdfUpload(512), domain.CategoryLegal, domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if store.created != nil {
		t.Fatalf("no document may be persisted on upload failure")
	}
}

func TestProcessDocumentInvokeErrorPersistsNothing(t *testing.T) {
	store := &analyzeStoreFake{}
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("text"),
		invokeErr:     errors.New("model overloaded"),
	}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, nil, nil)

	_, err := uc.ProcessDocument(context.Background(), pdfUpload(512), domain.CategoryLegal, domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if store.created != nil {
		t.Fatalf("no document may be persisted on model failure")
	}
}

func TestProcessDocumentMissingOptionalFieldsDefaultEmpty(t *testing.T) {
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("text"),
		invokeRaw:     `{"simplified_summary": "only a summary"}`,
	}
	uc := NewAnalyzeDocumentUseCase(&analyzeStoreFake{}, gateway, nil, nil, nil)

	doc, err := uc.ProcessDocument(context.Background(), pdfUpload(512), domain.CategoryEmployment, domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if doc.KeyPoints == nil || len(doc.KeyPoints) != 0 {
		t.Fatalf("expected empty key points slice, got %#v", doc.KeyPoints)
	}
	if doc.SuggestedNextSteps != "" {
		t.Fatalf("expected empty next steps, got %q", doc.SuggestedNextSteps)
	}
}

func TestEnqueueAnalysisCreatesPendingAndPublishes(t *testing.T) {
	store := &analyzeStoreFake{}
	storage := &rawStorageFake{}
	queue := &analyzeQueueFake{}
	uc := NewAnalyzeDocumentUseCase(store, &analyzeGatewayFake{}, nil, storage, queue)

	doc, err := uc.EnqueueAnalysis(context.Background(), pdfUpload(512), domain.CategoryMedical, domain.LanguageTamil)
	if err != nil {
		t.Fatalf("EnqueueAnalysis() error = %v", err)
	}
	if doc.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %s", doc.Status)
	}
	if !strings.HasSuffix(storage.savedKey, "_report.pdf") {
		t.Fatalf("expected sanitized storage key, got %q", storage.savedKey)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected one published id %s, got %v", doc.ID, queue.published)
	}
}

func TestProcessByIDMarksCompletedOnSuccess(t *testing.T) {
	store := &analyzeStoreFake{
		doc: &domain.Document{
			ID:         "doc-1",
			Title:      "scan.png",
			FileType:   "image/png",
			Category:   domain.CategoryGovernment,
			Language:   domain.LanguageEnglish,
			Status:     domain.StatusPending,
			StorageKey: "doc-1_scan.png",
		},
	}
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("scheme details"),
		invokeRaw:     `{"simplified_summary": "A government scheme.", "key_points": ["apply online"]}`,
	}
	storage := &rawStorageFake{content: []byte("png-bytes")}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, storage, &analyzeQueueFake{})

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(store.statusCalls) != 2 ||
		store.statusCalls[0] != domain.StatusProcessing ||
		store.statusCalls[1] != domain.StatusCompleted {
		t.Fatalf("unexpected status sequence: %v", store.statusCalls)
	}
	if store.savedID != "doc-1" || store.savedText != "scheme details" {
		t.Fatalf("expected saved analysis for doc-1, got id=%q text=%q", store.savedID, store.savedText)
	}
}

func TestProcessByIDMarksFailedOnModelError(t *testing.T) {
	store := &analyzeStoreFake{
		doc: &domain.Document{
			ID:         "doc-2",
			Title:      "scan.pdf",
			FileType:   "application/pdf",
			Category:   domain.CategoryLegal,
			Language:   domain.LanguageEnglish,
			Status:     domain.StatusPending,
			StorageKey: "doc-2_scan.pdf",
		},
	}
	gateway := &analyzeGatewayFake{
		extractResult: successfulExtraction("text"),
		invokeErr:     errors.New("model down"),
	}
	storage := &rawStorageFake{content: []byte("pdf-bytes")}
	uc := NewAnalyzeDocumentUseCase(store, gateway, nil, storage, &analyzeQueueFake{})

	if err := uc.ProcessByID(context.Background(), "doc-2"); err == nil {
		t.Fatalf("expected error")
	}
	if len(store.statusCalls) != 2 || store.statusCalls[1] != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %v", store.statusCalls)
	}
	if store.statusErrs[1] == "" {
		t.Fatalf("expected failure message on failed status")
	}
}
