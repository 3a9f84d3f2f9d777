// Package insights handles AI-powered video analysis via OpenRouter.
//
// OpenRouter provides a unified API for multiple LLM providers (OpenAI,
// Anthropic, Google, etc.) using a single API key. The request format
// follows the OpenAI chat completions standard.
//
// Four generators live here: topic-segmented highlight reels, a summary,
// suggested questions, and theme regrouping. Topics are essential; the
// other three are decorative — callers decide what's fatal.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Service handles AI generation.
type Service struct {
	apiKey     string
	model      string
	httpClient *http.Client

	// Overridable in tests.
	baseURL string
}

// New creates a new insights service.
func New(apiKey, model string) *Service {
	return &Service{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // LLMs can be slow
		},
		baseURL: openRouterURL,
	}
}

// Model returns the configured model identifier (recorded with analyses).
func (s *Service) Model() string {
	return s.model
}

// --- OpenRouter API types ---
// These match the OpenAI chat completions format used by OpenRouter.

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
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// chat sends one system+user exchange and returns the assistant's text.
func (s *Service) chat(ctx context.Context, system, user string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("OpenRouter API key not configured; set OPENROUTER_API_KEY")
	}

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "ClipNotes")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenRouter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenRouter returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("OpenRouter error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// --- Generators ---

// GenerateTopics asks the model for topic-segmented highlight reels and
// hydrates the result against the transcript.
func (s *Service) GenerateTopics(ctx context.Context, info *models.VideoInfo, segments []models.TranscriptSegment) ([]models.Topic, error) {
	title := ""
	if info != nil {
		title = info.Title
	}
	log.Printf("🤖 Generating topics for %q using %s", title, s.model)

	prompt := buildTopicsPrompt(title, segments)
	content, err := s.chat(ctx,
		"You are a precise video editor. You split transcripts into coherent topics and pick the exact time ranges that best represent each one.",
		prompt)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Topics []struct {
			Title       string  `json:"title"`
			Description string  `json:"description"`
			Quote       string  `json:"quote"`
			Segments    []struct {
				Start float64 `json:"start"`
				End   float64 `json:"end"`
			} `json:"segments"`
		} `json:"topics"`
	}
	if err := json.Unmarshal(extractJSON(content), &raw); err != nil || len(raw.Topics) == 0 {
		return nil, fmt.Errorf("model returned no usable topics: %w", err)
	}

	topics := make([]models.Topic, 0, len(raw.Topics))
	for _, rt := range raw.Topics {
		topic := models.Topic{
			Title:       rt.Title,
			Description: rt.Description,
			Quote:       rt.Quote,
		}
		for _, seg := range rt.Segments {
			topic.Segments = append(topic.Segments, models.TopicSegment{Start: seg.Start, End: seg.End})
		}
		topics = append(topics, topic)
	}

	return HydrateTopics(topics, segments), nil
}

// GenerateSummary produces a prose summary of the transcript.
func (s *Service) GenerateSummary(ctx context.Context, segments []models.TranscriptSegment) (string, error) {
	log.Printf("🤖 Generating summary using %s", s.model)

	content, err := s.chat(ctx,
		"You are a precise and insightful content summarizer. You extract key information from video transcripts and present it clearly.",
		fmt.Sprintf("Summarize the following video transcript in 1-2 paragraphs of flowing prose. Respond with the summary text only, no preamble.\n\n%s",
			joinTranscript(segments)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateQuestions suggests questions a viewer might ask about the video.
// Either the transcript or a previously generated summary can seed it.
func (s *Service) GenerateQuestions(ctx context.Context, segments []models.TranscriptSegment, summary string) ([]string, error) {
	log.Printf("🤖 Generating suggested questions using %s", s.model)

	source := summary
	if source == "" {
		source = joinTranscript(segments)
	}

	content, err := s.chat(ctx,
		"You suggest short, curious questions a viewer might ask about a video.",
		fmt.Sprintf(`Based on the following content, suggest 4 questions a viewer might ask.

**Important:** Respond with valid JSON in this exact format:
{"questions": ["Question 1?", "Question 2?"]}

**Content:**
%s`, source))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(extractJSON(content), &raw); err != nil || len(raw.Questions) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return raw.Questions, nil
}

// GroupThemes regroups existing topics under a theme, returning fresh
// topic groupings hydrated against the transcript.
func (s *Service) GroupThemes(ctx context.Context, theme string, topics []models.Topic, segments []models.TranscriptSegment) ([]models.Topic, error) {
	log.Printf("🤖 Regrouping %d topics around theme %q", len(topics), theme)

	topicsJSON, _ := json.Marshal(topics)
	content, err := s.chat(ctx,
		"You reorganize video highlight topics around a viewer-chosen theme, reusing the existing time ranges.",
		fmt.Sprintf(`Regroup these topics around the theme %q. Keep segment times from the input; merge or drop topics as needed.

**Important:** Respond with valid JSON: {"topics": [{"title": "...", "description": "...", "segments": [{"start": 0, "end": 10}]}]}

**Topics:**
%s`, theme, topicsJSON))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Topics []models.Topic `json:"topics"`
	}
	if err := json.Unmarshal(extractJSON(content), &raw); err != nil || len(raw.Topics) == 0 {
		return nil, fmt.Errorf("model returned no usable theme groups")
	}
	return HydrateTopics(raw.Topics, segments), nil
}

// --- Prompt helpers ---

func buildTopicsPrompt(title string, segments []models.TranscriptSegment) string {
	return fmt.Sprintf(`Split this video transcript into 3-7 coherent topics ("highlight reels").
Each topic gets a short title, a one-sentence description, an optional representative quote, and 1-3 time ranges (seconds) that cover it.

**Important:** Respond with valid JSON in this exact format:
{"topics": [{"title": "...", "description": "...", "quote": "...", "segments": [{"start": 12.5, "end": 48.0}]}]}

**Video:** %s

**Transcript (with start times in seconds):**
%s`, title, timedTranscript(segments))
}

// joinTranscript flattens segments into plain text, truncated to avoid
// token limits.
func joinTranscript(segments []models.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
		b.WriteByte(' ')
	}
	return truncate(b.String(), 15000)
}

// timedTranscript renders segments as "[12.5] text" lines so the model can
// cite real start times.
func timedTranscript(segments []models.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%.1f] %s\n", seg.Start, seg.Text)
	}
	return truncate(b.String(), 24000)
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "\n\n[Transcript truncated due to length...]"
}

// extractJSON finds the first balanced JSON object in the model output.
// Models sometimes wrap their JSON in markdown fences or prose.
func extractJSON(content string) []byte {
	start := -1
	braceCount := 0
	for i, c := range content {
		if c == '{' {
			if braceCount == 0 {
				start = i
			}
			braceCount++
		} else if c == '}' {
			braceCount--
			if braceCount == 0 && start >= 0 {
				return []byte(content[start : i+1])
			}
		}
	}
	return []byte(content)
}
