package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
	"github.com/saralhq/saral/internal/observability/metrics"
)

const serviceName = "saral-api"

type Router struct {
	analyzer ports.DocumentAnalyzer
	chat     ports.ChatService
	library  ports.DocumentLibrary
	metrics  *metrics.HTTPServerMetrics

	rateLimitRPS    int
	rateLimitBurst  int
	maxInFlight     int
	maxInFlightWait time.Duration
}

func NewRouter(
	analyzer ports.DocumentAnalyzer,
	chat ports.ChatService,
	library ports.DocumentLibrary,
	m *metrics.HTTPServerMetrics,
	rateLimitRPS, rateLimitBurst int,
	maxInFlight int, maxInFlightWait time.Duration,
) *Router {
	return &Router{
		analyzer:        analyzer,
		chat:            chat,
		library:         library,
		metrics:         m,
		rateLimitRPS:    rateLimitRPS,
		rateLimitBurst:  rateLimitBurst,
		maxInFlight:     maxInFlight,
		maxInFlightWait: maxInFlightWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/async", rt.enqueueDocument)
	mux.HandleFunc("/v1/documents/export", rt.exportDocuments)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/dashboard/stats", rt.dashboardStats)
	mux.HandleFunc("/v1/speech", rt.speak)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.maxInFlightWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// documents handles POST (synchronous analysis) and GET (library listing)
// on the collection path.
func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.analyzeDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	upload, category, language, err := parseUploadRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	doc, err := rt.analyzer.ProcessDocument(r.Context(), upload, category, language)
	if rt.metrics != nil {
		status := "completed"
		if err != nil {
			status = "error"
		}
		rt.metrics.RecordAnalysis(serviceName, string(category), status, time.Since(start))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUploadSize(serviceName, upload.Size)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) enqueueDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	upload, category, language, err := parseUploadRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := rt.analyzer.EnqueueAnalysis(r.Context(), upload, category, language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter := domain.LibraryFilter{
		Query:    r.URL.Query().Get("query"),
		Category: domain.Category(r.URL.Query().Get("category")),
		Status:   domain.ProcessingStatus(r.URL.Query().Get("status")),
	}

	docs, err := rt.library.ListDocuments(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) dashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.library.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// documentSubtree dispatches /v1/documents/{id} and its chat endpoints.
func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		rt.getDocument(w, r, id)
	case "conversation":
		rt.getConversation(w, r, id)
	case "chat":
		rt.chatTurn(w, r, id)
	case "chat/voice":
		rt.voiceTurn(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	doc, err := rt.library.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	conv, err := rt.chat.LoadSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if conv == nil {
		writeJSON(w, http.StatusOK, map[string]any{"conversation": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Message  string `json:"message"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	conv, err := rt.chat.SendTurn(r.Context(), id, req.Message, domain.Language(req.Language))
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChatTurn(serviceName, req.Language, turnUsedFallback(conv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

func (rt *Router) voiceTurn(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'audio' is required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read audio"})
		return
	}

	language := domain.Language(r.FormValue("language"))
	conv, reply, err := rt.chat.VoiceTurn(r.Context(), id, audio, fileHeader.Header.Get("Content-Type"), language)
	if rt.metrics != nil {
		rt.metrics.RecordSpeech(serviceName, "transcribe", err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"audio":        encodeAudio(reply),
	})
}

func (rt *Router) speak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	audio, err := rt.chat.Speak(r.Context(), req.Text, domain.Language(req.Language))
	if rt.metrics != nil {
		rt.metrics.RecordSpeech(serviceName, "synthesize", err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", audio.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func parseUploadRequest(r *http.Request) (domain.FileUpload, domain.Category, domain.Language, error) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		return domain.FileUpload{}, "", "", domain.WrapError(domain.ErrInvalidInput, "parse upload", fmt.Errorf("multipart field 'file' is required"))
	}
	defer file.Close()

	limited := io.LimitReader(file, domain.MaxUploadSize+1)
	content, err := io.ReadAll(limited)
	if err != nil {
		return domain.FileUpload{}, "", "", fmt.Errorf("read upload: %w", err)
	}

	upload := domain.FileUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     int64(len(content)),
		Content:  content,
	}
	category := domain.Category(r.FormValue("category"))
	language := domain.Language(r.FormValue("language"))
	return upload, category, language, nil
}

// turnUsedFallback reports whether the latest assistant message is the
// canned reply the chat core substitutes when the model fails.
func turnUsedFallback(conv *domain.Conversation) bool {
	if conv == nil {
		return false
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == domain.RoleAssistant {
			return conv.Messages[i].Content == domain.FallbackAssistantReply
		}
	}
	return false
}

func encodeAudio(audio domain.SpeechAudio) map[string]any {
	if len(audio.Data) == 0 {
		return nil
	}
	return map[string]any{
		"mime_type": audio.MimeType,
		"data":      audio.Data,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
