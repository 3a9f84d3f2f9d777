// language.go — lightweight character-ratio heuristic for deciding whether a
// transcript looks English. It samples a bounded prefix of the transcript,
// measures CJK rune density and Latin letter density, and rejects when the
// sample is clearly dominated by CJK text or barely contains Latin letters.
package youtube

import (
	"strings"
	"unicode"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// sampleRuneLimit bounds how much transcript text the heuristic inspects.
const sampleRuneLimit = 2000

// looksEnglish applies the character-ratio heuristic to a transcript sample.
// An empty transcript passes — emptiness is handled as a separate error.
func looksEnglish(segments []models.TranscriptSegment, h LanguageHeuristic) bool {
	var b strings.Builder
	count := 0
	for _, seg := range segments {
		b.WriteString(seg.Text)
		b.WriteByte(' ')
		count += len(seg.Text)
		if count >= sampleRuneLimit {
			break
		}
	}

	sample := b.String()
	var cjk, latin, letters int
	for _, r := range sample {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Han, r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r),
			unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
			cjk++
		case r < 128 && unicode.IsLetter(r):
			latin++
		}
	}

	if letters == 0 {
		return true
	}

	cjkRatio := float64(cjk) / float64(letters)
	latinRatio := float64(latin) / float64(letters)

	if cjkRatio > h.MaxCJKRatio {
		return false
	}
	return latinRatio >= h.MinLatinRatio
}
