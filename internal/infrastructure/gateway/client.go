// Package gateway is the HTTP client for the hosted model gateway: file
// storage, structured extraction, model invocation, and speech.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
	"github.com/saralhq/saral/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFile sends the raw file to the gateway's storage and returns the
// URL it will be referenced by.
func (c *Client) UploadFile(ctx context.Context, filename, mimeType string, content []byte) (string, error) {
	var response struct {
		FileURL string `json:"file_url"`
	}
	err := c.execute(ctx, "gateway.upload", func(callCtx context.Context) error {
		return c.postMultipart(callCtx, "/v1/files", filename, mimeType, content, &response, "upload")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("upload file", err)
	}
	if response.FileURL == "" {
		return "", fmt.Errorf("gateway upload returned empty file_url")
	}
	return response.FileURL, nil
}

// ExtractStructured asks the gateway to extract fields described by the
// schema from a previously uploaded file. A failure status is returned
// as data, not as an error; callers decide whether it is fatal.
func (c *Client) ExtractStructured(ctx context.Context, fileURL string, schema ports.JSONSchema) (domain.ExtractionResult, error) {
	request := map[string]any{
		"file_url":    fileURL,
		"json_schema": schema,
	}
	var result domain.ExtractionResult
	err := c.execute(ctx, "gateway.extract", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/extractions", request, &result, "extract")
	})
	if err != nil {
		return domain.ExtractionResult{}, wrapTemporaryIfNeeded("extract structured", err)
	}
	return result, nil
}

// InvokeStructured calls the model with a response schema and returns the
// raw structured object for the caller to decode.
func (c *Client) InvokeStructured(ctx context.Context, prompt string, schema ports.JSONSchema) (json.RawMessage, error) {
	request := map[string]any{
		"model":                c.model,
		"prompt":               prompt,
		"response_json_schema": schema,
	}
	var response struct {
		Output json.RawMessage `json:"output"`
	}
	err := c.execute(ctx, "gateway.invoke", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/invocations", request, &response, "invoke")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("invoke structured", err)
	}
	if len(response.Output) == 0 {
		return json.RawMessage("{}"), nil
	}
	return response.Output, nil
}

// InvokeText calls the model without a schema and returns free text.
func (c *Client) InvokeText(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.model,
		"prompt": prompt,
	}
	var response struct {
		Response string `json:"response"`
	}
	err := c.execute(ctx, "gateway.invoke", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/invocations", request, &response, "invoke")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("invoke text", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	classifier := classifyGatewayError
	if operation == "gateway.invoke" {
		classifier = classifyInvokeError
	}
	return c.executor.Execute(ctx, operation, call, classifier)
}
