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
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

func NewOpenAIClient(apiKey, apiURL, model string) *OpenAIClient {
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
	}
}

func (c *OpenAIClient) IsAvailable() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const fakeAnswersPrompt = `You generate wrong answer options for a multiple-choice quiz. You must respond with ONLY a valid JSON array of strings (no markdown, no code fences, no explanations), e.g. ["option one","option two","option three"].

Rules:
- Each option must be plausible but clearly wrong
- Options must be distinct from each other and from the correct answer
- Match the length and tone of the correct answer
- Write in the same language as the question`

const analyzePrompt = `You turn a live presentation transcript into a single multiple-choice quiz question. You must respond with ONLY valid JSON (no markdown, no code fences, no explanations) in this format:

{"question": "Question text?", "correct_answer": "Short factual answer", "topic_summary": "One-line topic", "confidence": 0.8}

Rules:
- Ask about a concrete fact the presenter actually stated in the NEW transcript part
- The correct answer must be short (a few words) and verifiable from the transcript
- confidence is your 0..1 estimate that this is a fair, answerable question
- If the new transcript contains no suitable material, respond with exactly: {"question": ""}`

// GenerateFakeAnswers asks the model for count distractors.
func (c *OpenAIClient) GenerateFakeAnswers(ctx context.Context, question, correctAnswer string, count int) ([]string, error) {
	user := fmt.Sprintf("Question: %s\nCorrect answer: %s\nGenerate %d wrong options.", question, correctAnswer, count)
	content, err := c.chat(ctx, fakeAnswersPrompt, user)
	if err != nil {
		return nil, err
	}

	var options []string
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &options); err != nil {
		return nil, fmt.Errorf("AI returned invalid JSON: %w", err)
	}
	out := options[:0]
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt != "" && !strings.EqualFold(opt, correctAnswer) {
			out = append(out, opt)
		}
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// AnalyzeAndGenerateQuestion proposes one question from the transcript delta.
func (c *OpenAIClient) AnalyzeAndGenerateQuestion(ctx context.Context, priorContext, delta string) (*Candidate, error) {
	user := fmt.Sprintf("Earlier transcript (context only):\n%s\n\nNEW transcript part:\n%s", priorContext, delta)
	content, err := c.chat(ctx, analyzePrompt, user)
	if err != nil {
		return nil, err
	}

	var candidate Candidate
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &candidate); err != nil {
		return nil, fmt.Errorf("AI returned invalid JSON: %w", err)
	}
	if strings.TrimSpace(candidate.Question) == "" {
		// The model declined; no good question in this material.
		return nil, nil
	}
	return &candidate, nil
}

func (c *OpenAIClient) chat(ctx context.Context, system, user string) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("AI generation is not configured")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from AI")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// cleanJSONContent strips markdown code fences some models wrap around JSON.
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	if strings.HasSuffix(content, "```") {
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
