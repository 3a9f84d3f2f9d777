// Package bilibili fetches video metadata and subtitles from Bilibili's
// public JSON endpoints.
//
// The transcript path is a three-hop chain: the view endpoint resolves the
// content ID (cid), the player endpoint lists available subtitles, and the
// subtitle URL serves the actual cue bodies. Subtitle cues arrive as
// {from, to, content} and are mapped to {start, duration, text}.
package bilibili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

const (
	viewURL   = "https://api.bilibili.com/x/web-interface/view"
	playerURL = "https://api.bilibili.com/x/player/v2"
)

// Subtitle language preference: Chinese variants first, else first available.
var preferredLanguages = []string{"zh-CN", "zh-Hans", "zh-Hant", "zh"}

// Client fetches Bilibili metadata and subtitles.
type Client struct {
	httpClient *http.Client

	// Overridable in tests; defaulted to the real endpoints.
	viewBase   string
	playerBase string
}

// New creates a Bilibili client. The timeout applies per outbound call.
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		viewBase:   viewURL,
		playerBase: playerURL,
	}
}

// --- API response shapes ---

// Bilibili wraps everything in {code, message, data}; code 0 means success.
type viewResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Bvid     string `json:"bvid"`
		Aid      int64  `json:"aid"`
		Cid      int64  `json:"cid"`
		Title    string `json:"title"`
		Desc     string `json:"desc"`
		Pic      string `json:"pic"`
		Duration int    `json:"duration"`
		Owner    struct {
			Name string `json:"name"`
		} `json:"owner"`
	} `json:"data"`
}

type playerResponse struct {
	Code int `json:"code"`
	Data struct {
		Subtitle struct {
			Subtitles []subtitleEntry `json:"subtitles"`
		} `json:"subtitle"`
	} `json:"data"`
}

type subtitleEntry struct {
	Lan         string `json:"lan"`
	LanDoc      string `json:"lan_doc"`
	SubtitleURL string `json:"subtitle_url"`
}

type subtitleBody struct {
	Body []struct {
		From    float64 `json:"from"`
		To      float64 `json:"to"`
		Content string  `json:"content"`
	} `json:"body"`
}

// FetchVideoInfo fetches view data for a BV or av ID.
func (c *Client) FetchVideoInfo(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	view, err := c.fetchView(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &models.VideoInfo{
		VideoID:     view.Data.Bvid,
		Title:       view.Data.Title,
		Author:      view.Data.Owner.Name,
		Thumbnail:   view.Data.Pic,
		Duration:    view.Data.Duration,
		Description: view.Data.Desc,
	}, nil
}

// FetchTranscript resolves the video's cid, picks the preferred subtitle
// track, and maps its cues to transcript segments.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]models.TranscriptSegment, string, error) {
	view, err := c.fetchView(ctx, videoID)
	if err != nil {
		return nil, "", err
	}

	entry, err := c.pickSubtitle(ctx, view)
	if err != nil {
		return nil, "", err
	}

	segments, err := c.fetchSubtitleBody(ctx, entry.SubtitleURL)
	if err != nil {
		return nil, "", err
	}
	if len(segments) == 0 {
		return nil, "", fmt.Errorf("subtitle track %s is empty: %w", entry.Lan, provider.ErrNoCaptions)
	}

	return segments, entry.Lan, nil
}

// fetchView calls the view endpoint with either bvid or aid depending on
// the ID shape.
func (c *Client) fetchView(ctx context.Context, videoID string) (*viewResponse, error) {
	var query string
	if strings.HasPrefix(videoID, "av") {
		query = "?aid=" + url.QueryEscape(strings.TrimPrefix(videoID, "av"))
	} else {
		query = "?bvid=" + url.QueryEscape(videoID)
	}

	body, err := c.get(ctx, c.viewBase+query)
	if err != nil {
		return nil, err
	}

	var view viewResponse
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("failed to parse view response: %w", provider.ErrUpstream)
	}
	if view.Code != 0 {
		// -404 means the video doesn't exist; everything else is upstream trouble.
		if view.Code == -404 {
			return nil, fmt.Errorf("bilibili view %s: %w", videoID, provider.ErrVideoNotFound)
		}
		return nil, fmt.Errorf("bilibili view returned code %d (%s): %w", view.Code, view.Message, provider.ErrUpstream)
	}
	return &view, nil
}

// pickSubtitle lists the video's subtitle tracks and selects the preferred
// language — Chinese variants first, else the first track offered.
func (c *Client) pickSubtitle(ctx context.Context, view *viewResponse) (*subtitleEntry, error) {
	query := fmt.Sprintf("?bvid=%s&cid=%d", url.QueryEscape(view.Data.Bvid), view.Data.Cid)
	body, err := c.get(ctx, c.playerBase+query)
	if err != nil {
		return nil, err
	}

	var player playerResponse
	if err := json.Unmarshal(body, &player); err != nil {
		return nil, fmt.Errorf("failed to parse player response: %w", provider.ErrUpstream)
	}

	subtitles := player.Data.Subtitle.Subtitles
	if len(subtitles) == 0 {
		return nil, fmt.Errorf("no subtitle tracks for %s: %w", view.Data.Bvid, provider.ErrNoCaptions)
	}

	for _, lang := range preferredLanguages {
		for i := range subtitles {
			if subtitles[i].Lan == lang {
				return &subtitles[i], nil
			}
		}
	}
	return &subtitles[0], nil
}

// fetchSubtitleBody downloads a subtitle JSON blob and maps its cues.
// Subtitle URLs are often protocol-relative ("//i0.hdslb.com/...").
func (c *Client) fetchSubtitleBody(ctx context.Context, subtitleURL string) ([]models.TranscriptSegment, error) {
	if strings.HasPrefix(subtitleURL, "//") {
		subtitleURL = "https:" + subtitleURL
	}

	body, err := c.get(ctx, subtitleURL)
	if err != nil {
		return nil, err
	}

	var blob subtitleBody
	if err := json.Unmarshal(body, &blob); err != nil {
		return nil, fmt.Errorf("failed to parse subtitle body: %w", provider.ErrUpstream)
	}

	segments := make([]models.TranscriptSegment, 0, len(blob.Body))
	for _, cue := range blob.Body {
		segments = append(segments, models.TranscriptSegment{
			Text:     cue.Content,
			Start:    cue.From,
			Duration: cue.To - cue.From,
		})
	}
	return segments, nil
}

// get performs a GET with timeout classification.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Bilibili rejects requests without a browser-ish User-Agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; clipnotes/1.0)")
	req.Header.Set("Referer", "https://www.bilibili.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if provider.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("bilibili request: %w", provider.ErrTimeout)
		}
		return nil, fmt.Errorf("bilibili request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bilibili returned %d: %w", resp.StatusCode, provider.ErrUpstream)
	}

	return io.ReadAll(resp.Body)
}
