// Package platform classifies video URLs and extracts their native video IDs.
//
// Go Pattern: These are pure functions — no I/O, no state. That makes them
// trivially testable and safe to call from anywhere. Callers treat an empty
// result as a user input error (HTTP 400), never a crash.
package platform

import (
	"regexp"
	"strings"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// YouTube video IDs are exactly 11 characters of this alphabet.
var youtubeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// Known YouTube URL shapes: canonical watch, short link, embed, shorts,
// legacy /v/, and the mobile domain. Hosts and paths match case-insensitively
// (Detect already accepts shouted URLs); the ID capture stays case-sensitive
// because YouTube IDs are.
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:youtube\.com/watch\?(?:[^#]*&)?v=)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?i:youtu\.be/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?i:youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?i:youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?i:youtube\.com/v/)([a-zA-Z0-9_-]{11})`),
}

// Bilibili IDs are either BV-strings or numeric av-IDs, and show up on the
// canonical domain, the mobile domain, and the b23.tv short domain. Same
// deal as above: case-insensitive host, case-sensitive BV ID.
var bilibiliPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:bilibili\.com/video/)(BV[0-9A-Za-z]{10})`),
	regexp.MustCompile(`(?i:bilibili\.com/video/)(av\d+)`),
	regexp.MustCompile(`(?i:b23\.tv/)(BV[0-9A-Za-z]{10})`),
	regexp.MustCompile(`(?i:b23\.tv/)(av\d+)`),
}

var bilibiliHosts = []string{"bilibili.com", "b23.tv"}
var youtubeHosts = []string{"youtube.com", "youtu.be"}

// Detect classifies a URL as YouTube or Bilibili.
// Returns "" for unsupported or malformed input.
func Detect(rawURL string) models.Platform {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	for _, host := range youtubeHosts {
		if strings.Contains(u, host) {
			return models.PlatformYouTube
		}
	}
	for _, host := range bilibiliHosts {
		if strings.Contains(u, host) {
			return models.PlatformBilibili
		}
	}
	return ""
}

// ExtractVideoID pulls the platform-native video ID out of a URL.
// Returns "" when no supported shape matches.
func ExtractVideoID(rawURL string) string {
	input := strings.TrimSpace(rawURL)

	switch Detect(input) {
	case models.PlatformYouTube:
		for _, pattern := range youtubePatterns {
			if matches := pattern.FindStringSubmatch(input); len(matches) >= 2 {
				return matches[1]
			}
		}
	case models.PlatformBilibili:
		for _, pattern := range bilibiliPatterns {
			if matches := pattern.FindStringSubmatch(input); len(matches) >= 2 {
				return matches[1]
			}
		}
	}

	// A bare 11-character token is accepted as a YouTube video ID.
	if youtubeIDPattern.MatchString(input) {
		return input
	}

	return ""
}

// Parse is a convenience wrapper that resolves both platform and ID.
// A bare video ID is treated as YouTube.
func Parse(rawURL string) (models.Platform, string) {
	p := Detect(rawURL)
	id := ExtractVideoID(rawURL)
	if id == "" {
		return "", ""
	}
	if p == "" {
		p = models.PlatformYouTube
	}
	return p, id
}

// WatchURL builds the canonical watch page URL for a platform/ID pair.
func WatchURL(p models.Platform, videoID string) string {
	switch p {
	case models.PlatformYouTube:
		return "https://www.youtube.com/watch?v=" + videoID
	case models.PlatformBilibili:
		return "https://www.bilibili.com/video/" + videoID
	}
	return ""
}
