// client_test.go — Tests for Supadata failure classification and the
// language heuristic. Network behavior is tested against httptest servers;
// we never hit real upstreams in unit tests.
package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

func defaultHeuristic() LanguageHeuristic {
	return LanguageHeuristic{MaxCJKRatio: 0.3, MinLatinRatio: 0.5}
}

func segmentsOf(texts ...string) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, len(texts))
	for i, txt := range texts {
		segs[i] = models.TranscriptSegment{Text: txt, Start: float64(i), Duration: 1}
	}
	return segs
}

func TestLooksEnglish(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"plain english", "Hello and welcome to this video about Go programming", true},
		{"mostly chinese", "今天我们来聊一聊视频分析的实现方式和一些细节问题", false},
		{"mixed but mostly english", "We use the word 你好 once in this long English sentence about testing", true},
		{"mixed but mostly cjk", "视频 video 分析 analysis 高亮 highlight 摘要 总结 内容 讲解 字幕 翻译", false},
		{"empty", "", true},
		{"numbers and punctuation only", "123 456 !!! ???", true},
	}

	h := defaultHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := looksEnglish(segmentsOf(tt.text), h)
			if got != tt.want {
				t.Errorf("looksEnglish(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestLooksEnglish_SamplesOnlyPrefix(t *testing.T) {
	// A transcript that starts English but turns Chinese after the sample
	// window should still pass — the heuristic only looks at the prefix.
	english := strings.Repeat("this is a long english sentence about the video ", 60)
	segs := segmentsOf(english, strings.Repeat("这是中文内容", 200))
	if !looksEnglish(segs, defaultHeuristic()) {
		t.Error("expected English prefix to pass the heuristic")
	}
}

func TestFetchVideoInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); !strings.Contains(got, "dQw4w9WgXcQ") {
			t.Errorf("oembed called with url=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"Never Gonna Give You Up","author_name":"Rick Astley","thumbnail_url":"https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}`))
	}))
	defer server.Close()

	c := New("", 5*time.Second, defaultHeuristic())
	c.oembedBase = server.URL

	info, err := c.FetchVideoInfo(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FetchVideoInfo returned error: %v", err)
	}
	if info.Title != "Never Gonna Give You Up" || info.Author != "Rick Astley" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("VideoID = %q", info.VideoID)
	}
}

func TestFetchVideoInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New("", 5*time.Second, defaultHeuristic())
	c.oembedBase = server.URL

	_, err := c.FetchVideoInfo(context.Background(), "missing12345")
	if !errors.Is(err, provider.ErrVideoNotFound) {
		t.Errorf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestFetchTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lang":"en","content":[
			{"text":"Hello and welcome","offset":0,"duration":2500},
			{"text":"to this video about Go","offset":2500,"duration":3000}
		]}`))
	}))
	defer server.Close()

	c := New("test-key", 5*time.Second, defaultHeuristic())
	c.supadataBase = server.URL

	segments, lang, err := c.FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("FetchTranscript returned error: %v", err)
	}
	if lang != "en" {
		t.Errorf("lang = %q, want en", lang)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	// Millisecond offsets become seconds
	if segments[1].Start != 2.5 || segments[1].Duration != 3.0 {
		t.Errorf("segment[1] = %+v", segments[1])
	}
}

func TestFetchTranscript_RejectsNonEnglish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lang":"zh","content":[{"text":"今天我们来聊一聊视频分析的实现方式","offset":0,"duration":3000}]}`))
	}))
	defer server.Close()

	c := New("test-key", 5*time.Second, defaultHeuristic())
	c.supadataBase = server.URL

	_, _, err := c.FetchTranscript(context.Background(), "abcdefghijk")
	if !errors.Is(err, provider.ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestFetchTranscript_NoCaptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"transcript-unavailable","message":"No transcript for this video"}`))
	}))
	defer server.Close()

	c := New("test-key", 5*time.Second, defaultHeuristic())
	c.supadataBase = server.URL

	_, _, err := c.FetchTranscript(context.Background(), "abcdefghijk")
	if !errors.Is(err, provider.ErrNoCaptions) {
		t.Errorf("expected ErrNoCaptions, got %v", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		resp   supadataResponse
		want   error
	}{
		{"http 404", http.StatusNotFound, supadataResponse{}, provider.ErrNoCaptions},
		{"transcript unavailable body", http.StatusBadRequest,
			supadataResponse{Error: "transcript-unavailable"}, provider.ErrNoCaptions},
		{"captions disabled body", http.StatusBadRequest,
			supadataResponse{Message: "subtitles are disabled for this video"}, provider.ErrNoCaptions},
		{"language failure", http.StatusBadRequest,
			supadataResponse{Error: "unsupported language"}, provider.ErrUnsupportedLanguage},
		{"empty 200", http.StatusOK, supadataResponse{}, provider.ErrNoCaptions},
		{"server error", http.StatusBadGateway, supadataResponse{}, provider.ErrUpstream},
		{"rate limited upstream", http.StatusTooManyRequests, supadataResponse{}, provider.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFailure(tt.status, tt.resp)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyFailure(%d, %+v) = %v, want %v", tt.status, tt.resp, got, tt.want)
			}
		})
	}
}
