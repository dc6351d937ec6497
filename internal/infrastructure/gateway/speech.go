package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/saralhq/saral/internal/core/domain"
)

// Speech adapts the gateway's audio endpoints to the speech capability
// port. Stateless: all listening/speaking state stays with the caller.
type Speech struct {
	client *Client
}

func NewSpeech(client *Client) *Speech {
	return &Speech{client: client}
}

func (s *Speech) Transcribe(ctx context.Context, audio []byte, mimeType, langCode string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "input")
	if err != nil {
		return "", fmt.Errorf("create transcription form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write transcription audio: %w", err)
	}
	if err := writer.WriteField("content_type", mimeType); err != nil {
		return "", fmt.Errorf("write transcription content type: %w", err)
	}
	if err := writer.WriteField("language", langCode); err != nil {
		return "", fmt.Errorf("write transcription language: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close transcription body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	s.client.authorize(req)

	var response struct {
		Text string `json:"text"`
	}
	if err := s.client.do(req, &response, "transcribe"); err != nil {
		return "", wrapTemporaryIfNeeded("transcribe audio", err)
	}
	return response.Text, nil
}

func (s *Speech) Synthesize(ctx context.Context, text, langCode string) (domain.SpeechAudio, error) {
	body, err := json.Marshal(map[string]any{
		"input":    text,
		"language": langCode,
	})
	if err != nil {
		return domain.SpeechAudio{}, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return domain.SpeechAudio{}, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.client.authorize(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return domain.SpeechAudio{}, fmt.Errorf("gateway synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.SpeechAudio{}, wrapTemporaryIfNeeded("synthesize speech", newHTTPStatusError("synthesize", resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SpeechAudio{}, fmt.Errorf("read synthesized audio: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return domain.SpeechAudio{Data: data, MimeType: mimeType}, nil
}
