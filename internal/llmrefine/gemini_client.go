package llmrefine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GeminiClient is a hand-rolled REST client for the Gemini
// generateContent endpoint — no Go Gemini SDK is available, so this
// follows the same CompletionClient shape as OpenAIClient using only
// net/http, preferring a small direct HTTP client over a heavyweight
// generated SDK.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
}

// NewGeminiClient constructs a client against the public Generative
// Language API.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		endpoint:   "https://generativelanguage.googleapis.com/v1beta/models",
	}
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"system_instruction"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Chat implements CompletionClient.
func (c *GeminiClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: userPrompt}}}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini request marshal: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini response read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("gemini response unmarshal: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// MockClient is a deterministic CompletionClient for tests and for the
// "none"/offline configuration; it returns Err if set and otherwise
// Response verbatim, with no network access. A zero MockClient returns
// an empty string, which the validator rejects.
type MockClient struct {
	Response string
	Err      error
}

// Chat implements CompletionClient.
func (c *MockClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}
