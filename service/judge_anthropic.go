package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	anthropicAPIURL         = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion     = "2023-06-01"
	defaultAnthropicModelID = "claude-3-7-sonnet-20250219"
)

// AnthropicJudge asks the Anthropic Messages API directly, for deployments
// that are not on AWS.
type AnthropicJudge struct {
	apiKey string
	model  string
	client *http.Client
}

// NewAnthropicJudge builds the judge from ANTHROPIC_API_KEY and
// REVIEW_JUDGE_MODEL_ID.
func NewAnthropicJudge() (*AnthropicJudge, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	model := os.Getenv("REVIEW_JUDGE_MODEL_ID")
	if model == "" {
		model = defaultAnthropicModelID
	}
	return &AnthropicJudge{
		apiKey: key,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (j *AnthropicJudge) Ask(ctx context.Context, ruleName, ruleDescription string, documentBytes []byte, mediaType, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":      j.model,
		"max_tokens": 2048,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "document",
						"source": map[string]interface{}{
							"type":       "base64",
							"media_type": mediaType,
							"data":       base64.StdEncoding.EncodeToString(documentBytes),
						},
					},
					{"type": "text", "text": prompt},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", j.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read judge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode judge response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in judge response")
	}
	return text, nil
}
