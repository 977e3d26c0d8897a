package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// scorePattern extracts the first decimal in the model's reply. Chat
// models occasionally wrap the number in prose despite instructions.
var scorePattern = regexp.MustCompile(`[01](?:\.\d+)?`)

const scorePrompt = `You are a vocabulary curator for music-track tagging.
Rate the semantic similarity of the two tag terms below on a scale from 0 to 1,
where 1 means they name the same concept and 0 means they are unrelated.
The terms are typically Chinese film/music vocabulary.
Reply with only the number.

Term A: %s
Term B: %s`

// OpenAIProvider scores pairs with an OpenAI chat model.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Score asks the chat model for a 0-1 similarity rating.
func (p *OpenAIProvider) Score(ctx context.Context, candidate, existing string) (float64, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(scorePrompt, candidate, existing)},
		},
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("oracle: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("oracle: unmarshal response: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("oracle: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if len(result.Choices) == 0 {
		return 0, fmt.Errorf("oracle: empty completion")
	}
	return parseScore(result.Choices[0].Message.Content)
}

// parseScore turns a model reply into a similarity value.
func parseScore(reply string) (float64, error) {
	reply = strings.TrimSpace(reply)
	if v, err := strconv.ParseFloat(reply, 64); err == nil {
		return clamp01(v), nil
	}
	match := scorePattern.FindString(reply)
	if match == "" {
		return 0, fmt.Errorf("oracle: no score in reply %q", reply)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("oracle: parse score %q: %w", match, err)
	}
	return clamp01(v), nil
}
