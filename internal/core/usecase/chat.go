package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
)

// ChatSessionUseCase maintains the persisted dialogue between a user and
// the model, scoped to one document. Turns for the same document are
// single-flight: a second concurrent SendTurn is rejected instead of
// racing the transcript update.
type ChatSessionUseCase struct {
	documents     ports.DocumentStore
	conversations ports.ConversationStore
	gateway       ports.ModelGateway
	speech        ports.SpeechGateway

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewChatSessionUseCase(
	documents ports.DocumentStore,
	conversations ports.ConversationStore,
	gateway ports.ModelGateway,
	speech ports.SpeechGateway,
) *ChatSessionUseCase {
	return &ChatSessionUseCase{
		documents:     documents,
		conversations: conversations,
		gateway:       gateway,
		speech:        speech,
		inFlight:      make(map[string]struct{}),
	}
}

// LoadSession returns the newest conversation for a document, or nil when
// none exists yet (fresh-session semantics). Callers seed the active
// language from the returned conversation.
func (uc *ChatSessionUseCase) LoadSession(ctx context.Context, documentID string) (*domain.Conversation, error) {
	conv, err := uc.conversations.LatestByDocument(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrConversationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (uc *ChatSessionUseCase) SendTurn(
	ctx context.Context,
	documentID, userText string,
	language domain.Language,
) (*domain.Conversation, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send turn", errors.New("message is required"))
	}
	language = normalizeLanguage(language)
	if !language.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send turn", errors.New("unknown language: "+string(language)))
	}

	if !uc.acquire(documentID) {
		return nil, domain.WrapError(domain.ErrTurnInFlight, "send turn", errors.New("document "+documentID))
	}
	defer uc.release(documentID)

	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	conv, err := uc.LoadSession(ctx, documentID)
	if err != nil {
		return nil, err
	}

	prior := []domain.Message{}
	if conv != nil {
		prior = conv.Messages
	}

	userMessage := domain.Message{
		Role:      domain.RoleUser,
		Content:   userText,
		Timestamp: time.Now().UTC(),
	}

	// A model failure degrades to a fixed fallback reply; every user
	// message gets exactly one assistant reply, real or not.
	reply, err := uc.gateway.InvokeText(ctx, buildChatPrompt(doc, prior, userText, language))
	if err != nil || strings.TrimSpace(reply) == "" {
		reply = domain.FallbackAssistantReply
	}
	assistantMessage := domain.Message{
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}

	updated := make([]domain.Message, 0, len(prior)+2)
	updated = append(updated, prior...)
	updated = append(updated, userMessage, assistantMessage)

	return uc.persistTurn(ctx, conv, documentID, updated, language)
}

// persistTurn replaces the conversation wholesale (last-write-wins), or
// creates it on the first turn for a document.
func (uc *ChatSessionUseCase) persistTurn(
	ctx context.Context,
	conv *domain.Conversation,
	documentID string,
	messages []domain.Message,
	language domain.Language,
) (*domain.Conversation, error) {
	now := time.Now().UTC()
	if conv == nil {
		conv = &domain.Conversation{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Messages:   messages,
			Language:   language,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := uc.conversations.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		return conv, nil
	}

	if err := uc.conversations.Update(ctx, conv.ID, messages, language); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	conv.Messages = messages
	conv.Language = language
	conv.UpdatedAt = now
	return conv, nil
}

// VoiceTurn transcribes spoken input, runs a normal turn, and synthesizes
// the assistant's reply in the requested language.
func (uc *ChatSessionUseCase) VoiceTurn(
	ctx context.Context,
	documentID string,
	audio []byte,
	mimeType string,
	language domain.Language,
) (*domain.Conversation, domain.SpeechAudio, error) {
	if uc.speech == nil {
		return nil, domain.SpeechAudio{}, errors.New("speech capability is not configured")
	}
	language = normalizeLanguage(language)

	text, err := uc.speech.Transcribe(ctx, audio, mimeType, language.SpeechCode())
	if err != nil {
		return nil, domain.SpeechAudio{}, fmt.Errorf("transcribe voice input: %w", err)
	}

	conv, err := uc.SendTurn(ctx, documentID, text, language)
	if err != nil {
		return nil, domain.SpeechAudio{}, err
	}

	reply := conv.Messages[len(conv.Messages)-1]
	spoken, err := uc.speech.Synthesize(ctx, reply.Content, language.SpeechCode())
	if err != nil {
		// The turn itself is already persisted; voice output is best effort.
		return conv, domain.SpeechAudio{}, nil
	}
	return conv, spoken, nil
}

func (uc *ChatSessionUseCase) Speak(ctx context.Context, text string, language domain.Language) (domain.SpeechAudio, error) {
	if uc.speech == nil {
		return domain.SpeechAudio{}, errors.New("speech capability is not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.SpeechAudio{}, domain.WrapError(domain.ErrInvalidInput, "speak", errors.New("text is required"))
	}
	language = normalizeLanguage(language)

	audio, err := uc.speech.Synthesize(ctx, text, language.SpeechCode())
	if err != nil {
		return domain.SpeechAudio{}, fmt.Errorf("synthesize speech: %w", err)
	}
	return audio, nil
}

func (uc *ChatSessionUseCase) acquire(documentID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.inFlight[documentID]; busy {
		return false
	}
	uc.inFlight[documentID] = struct{}{}
	return true
}

func (uc *ChatSessionUseCase) release(documentID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.inFlight, documentID)
}

func buildChatPrompt(doc *domain.Document, prior []domain.Message, question string, language domain.Language) string {
	content := doc.OriginalText
	if content == "" {
		content = doc.SimplifiedSummary
	}

	var transcript strings.Builder
	for _, msg := range prior {
		transcript.WriteString(msg.Role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	return fmt.Sprintf(`You are an expert document analyst helping users understand their documents.
The user has uploaded a %s document titled "%s".

Document content:
%s

Previous conversation:
%s
User question: %s

Please provide a helpful, accurate response in %s.
Keep the language simple and avoid technical jargon. If the question is not related to the document, politely redirect them back to the document content.`,
		doc.Category, doc.Title, content, transcript.String(), question, language.DisplayName())
}
