package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

// OllamaLLM implements LLMService against a self-hosted Ollama server
type OllamaLLM struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLM creates a new Ollama completion service
func NewOllamaLLM(baseURL, model string) (*OllamaLLM, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaLLM{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// Local models can be slow on first load
		client: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Complete runs a non-streaming chat completion
func (l *OllamaLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	body := ollamaChatRequest{
		Model:    l.model,
		Messages: messages(req),
		Options:  map[string]any{"temperature": 0.2},
	}
	if req.JSON {
		body.Format = "json"
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if chat.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", chat.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return chat.Message.Content, nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping checks that the server answers
func (l *OllamaLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
