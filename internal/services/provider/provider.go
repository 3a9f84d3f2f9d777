// Package provider defines the common contract and error taxonomy for the
// per-platform video clients (YouTube, Bilibili).
//
// Go Pattern: Define interfaces where they're USED, not where they're
// implemented. The analyzer and handlers depend on this small interface;
// each client package satisfies it implicitly.
package provider

import (
	"context"
	"errors"
	"net"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// Client is the contract every platform client exposes.
type Client interface {
	FetchVideoInfo(ctx context.Context, videoID string) (*models.VideoInfo, error)
	FetchTranscript(ctx context.Context, videoID string) ([]models.TranscriptSegment, string, error)
}

// Sentinel errors for upstream failures. Handlers map these to HTTP status
// codes; the analyzer uses them to decide what's fatal vs degradable.
//
// Check with errors.Is():
//
//	if errors.Is(err, provider.ErrNoCaptions) { ... }
var (
	// ErrTimeout means the upstream call exceeded its deadline. Surfaced to
	// users as "request timed out", never as a generic failure.
	ErrTimeout = errors.New("upstream request timed out")

	// ErrNoCaptions means the video exists but has no usable subtitles.
	ErrNoCaptions = errors.New("no captions available for this video")

	// ErrUnsupportedLanguage means a transcript exists but the language
	// heuristic rejected it.
	ErrUnsupportedLanguage = errors.New("transcript language is not supported")

	// ErrVideoNotFound means the platform reports no such video.
	ErrVideoNotFound = errors.New("video not found")

	// ErrUpstream covers transient upstream failures (5xx, malformed bodies).
	ErrUpstream = errors.New("upstream service error")
)

// IsTimeout reports whether err is a deadline/timeout of any flavor:
// our sentinel, a context deadline, or a net timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
