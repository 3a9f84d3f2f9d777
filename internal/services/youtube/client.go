// Package youtube fetches video metadata and transcripts from YouTube.
//
// Metadata comes from the public oEmbed endpoint (no API key needed).
// Transcripts come from Supadata, a paid transcript API — YouTube itself
// has no official transcript API. Both upstreams are treated as untrusted,
// rate-limited, and occasionally malformed.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

const (
	oembedURL             = "https://www.youtube.com/oembed"
	supadataTranscriptURL = "https://api.supadata.ai/v1/youtube/transcript"
)

// LanguageHeuristic holds the tunable thresholds for the English-language
// check applied to transcript samples. The exact values are configuration,
// not load-bearing logic.
type LanguageHeuristic struct {
	MaxCJKRatio   float64
	MinLatinRatio float64
}

// Client fetches YouTube metadata and transcripts.
type Client struct {
	supadataKey string
	heuristic   LanguageHeuristic
	httpClient  *http.Client

	// Overridable in tests; defaulted to the real endpoints.
	oembedBase   string
	supadataBase string
}

// New creates a YouTube client. The timeout applies per outbound call.
//
// Go Pattern: Always configure timeouts on HTTP clients. The default
// http.Client has NO timeout — requests can hang forever!
func New(supadataKey string, timeout time.Duration, heuristic LanguageHeuristic) *Client {
	return &Client{
		supadataKey:  supadataKey,
		heuristic:    heuristic,
		httpClient:   &http.Client{Timeout: timeout},
		oembedBase:   oembedURL,
		supadataBase: supadataTranscriptURL,
	}
}

// --- oEmbed metadata ---

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FetchVideoInfo fetches title/author/thumbnail via oEmbed.
// oEmbed doesn't report duration, so Duration stays 0.
func (c *Client) FetchVideoInfo(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	watchURL := "https://www.youtube.com/watch?v=" + videoID
	reqURL := c.oembedBase + "?format=json&url=" + url.QueryEscape(watchURL)

	body, status, err := c.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusBadRequest {
		return nil, fmt.Errorf("oembed lookup for %s: %w", videoID, provider.ErrVideoNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("oembed returned %d: %w", status, provider.ErrUpstream)
	}

	var resp oembedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse oembed response: %w", provider.ErrUpstream)
	}

	return &models.VideoInfo{
		VideoID:   videoID,
		Title:     resp.Title,
		Author:    resp.AuthorName,
		Thumbnail: resp.ThumbnailURL,
	}, nil
}

// --- Supadata transcript ---

type supadataResponse struct {
	Lang    string `json:"lang"`
	Content []struct {
		Text     string  `json:"text"`
		Offset   float64 `json:"offset"`   // milliseconds
		Duration float64 `json:"duration"` // milliseconds
	} `json:"content"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchTranscript fetches the transcript via Supadata and returns ordered
// segments plus the reported language code.
//
// Failure classification:
//   - 404 or a "not found"/"unavailable" body → ErrNoCaptions
//   - non-English per the character-ratio heuristic → ErrUnsupportedLanguage
//   - timeout → ErrTimeout (distinct user-facing category)
//   - anything else → ErrUpstream (transient)
func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]models.TranscriptSegment, string, error) {
	if c.supadataKey == "" {
		return nil, "", fmt.Errorf("Supadata API key not configured; set SUPADATA_API_KEY")
	}

	reqURL := c.supadataBase + "?videoId=" + url.QueryEscape(videoID) + "&text=false"
	headers := map[string]string{"x-api-key": c.supadataKey}

	body, status, err := c.get(ctx, reqURL, headers)
	if err != nil {
		return nil, "", err
	}

	var resp supadataResponse
	// Parse the body regardless of status — Supadata puts its failure reason
	// in the JSON error fields.
	_ = json.Unmarshal(body, &resp)

	if status != http.StatusOK || len(resp.Content) == 0 {
		return nil, "", classifyFailure(status, resp)
	}

	segments := make([]models.TranscriptSegment, 0, len(resp.Content))
	for _, item := range resp.Content {
		segments = append(segments, models.TranscriptSegment{
			Text:     item.Text,
			Start:    item.Offset / 1000.0,
			Duration: item.Duration / 1000.0,
		})
	}

	if !looksEnglish(segments, c.heuristic) {
		log.Printf("⚠️  Transcript for %s rejected by language heuristic (lang=%s)", videoID, resp.Lang)
		return nil, "", fmt.Errorf("transcript for %s: %w", videoID, provider.ErrUnsupportedLanguage)
	}

	return segments, resp.Lang, nil
}

// classifyFailure maps a Supadata failure to the error taxonomy using
// heuristics over the status code and response body fields.
func classifyFailure(status int, resp supadataResponse) error {
	reason := strings.ToLower(resp.Error + " " + resp.Message)

	switch {
	case status == http.StatusNotFound,
		strings.Contains(reason, "transcript-unavailable"),
		strings.Contains(reason, "no transcript"),
		strings.Contains(reason, "not found"),
		strings.Contains(reason, "disabled"):
		return fmt.Errorf("supadata: %s: %w", reason, provider.ErrNoCaptions)
	case strings.Contains(reason, "language"):
		return fmt.Errorf("supadata: %s: %w", reason, provider.ErrUnsupportedLanguage)
	case status == http.StatusOK:
		// 200 with empty content — treat like missing captions
		return fmt.Errorf("supadata returned empty transcript: %w", provider.ErrNoCaptions)
	default:
		return fmt.Errorf("supadata returned %d: %w", status, provider.ErrUpstream)
	}
}

// get performs a GET with timeout classification.
func (c *Client) get(ctx context.Context, reqURL string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if provider.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("youtube request: %w", provider.ErrTimeout)
		}
		return nil, 0, fmt.Errorf("youtube request failed: %w", err)
	}
	defer resp.Body.Close() // Go Pattern: ALWAYS close response bodies!

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
