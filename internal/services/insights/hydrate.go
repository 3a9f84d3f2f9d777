package insights

import (
	"github.com/google/uuid"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// HydrateTopics makes model-proposed topics playable: it clamps segment
// bounds to the real transcript, assigns IDs, computes durations, and
// drops topics the model left without usable time ranges.
//
// LLM output is untrusted — segment times may overshoot the video, run
// backwards, or be missing entirely. Hydration is the last line of defense
// before topics reach a player.
func HydrateTopics(topics []models.Topic, transcript []models.TranscriptSegment) []models.Topic {
	videoEnd := transcriptEnd(transcript)

	out := make([]models.Topic, 0, len(topics))
	for _, topic := range topics {
		segments := make([]models.TopicSegment, 0, len(topic.Segments))
		for _, seg := range topic.Segments {
			clamped, ok := clampSegment(seg, videoEnd)
			if !ok {
				continue
			}
			segments = append(segments, clamped)
		}
		if len(segments) == 0 {
			continue
		}

		topic.Segments = segments
		if topic.ID == "" {
			topic.ID = uuid.New().String()
		}
		topic.Duration = 0
		for _, seg := range segments {
			topic.Duration += seg.End - seg.Start
		}
		out = append(out, topic)
	}
	return out
}

// clampSegment snaps a segment into [0, videoEnd]. Segments that collapse
// to nothing after clamping are rejected.
func clampSegment(seg models.TopicSegment, videoEnd float64) (models.TopicSegment, bool) {
	if seg.Start < 0 {
		seg.Start = 0
	}
	if videoEnd > 0 && seg.End > videoEnd {
		seg.End = videoEnd
	}
	if seg.End <= seg.Start {
		return seg, false
	}
	return seg, true
}

// transcriptEnd returns the end time of the last cue, or 0 when the
// transcript is empty (meaning: no upper bound known).
func transcriptEnd(transcript []models.TranscriptSegment) float64 {
	var end float64
	for _, seg := range transcript {
		if t := seg.Start + seg.Duration; t > end {
			end = t
		}
	}
	return end
}
