// Package playback implements the player command protocol.
//
// The orchestrator drives whatever player the client runs (embedded
// YouTube iframe, Bilibili web player) through discrete commands rather
// than direct method calls. A command is issued once, consumed exactly
// once, and cleared after it is applied — re-reads must never re-apply a
// stale command. Player backends only need the small Player capability
// interface; everything stateful lives here.
package playback

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// Kind tags a playback command.
type Kind string

const (
	CmdSeek          Kind = "SEEK"
	CmdPlayTopic     Kind = "PLAY_TOPIC"
	CmdPlaySegment   Kind = "PLAY_SEGMENT"
	CmdPlayCitations Kind = "PLAY_CITATIONS"
	CmdPlayAll       Kind = "PLAY_ALL"
	CmdPlay          Kind = "PLAY"
	CmdPause         Kind = "PAUSE"
)

// Command is a tagged variant: Kind selects which payload field is set.
type Command struct {
	Kind Kind `json:"kind"`

	// CmdSeek
	Time float64 `json:"time,omitempty"`

	// CmdPlayTopic
	Topic *models.Topic `json:"topic,omitempty"`

	// CmdPlaySegment
	Segment *models.TopicSegment `json:"segment,omitempty"`

	// CmdPlayCitations
	Citations []models.Citation `json:"citations,omitempty"`

	// CmdPlayAll
	Topics []models.Topic `json:"topics,omitempty"`
}

// Player is the capability surface a backend must provide. Backends share
// no inheritance, only this interface.
type Player interface {
	Seek(seconds float64)
	Play()
	Pause()
	ReportDuration() float64
}

// State is the controller's view of what should be playing.
type State struct {
	Playing      bool
	Position     float64
	Topic        *models.Topic // active topic, nil when free-playing
	SegmentIndex int           // index into Topic.Segments

	// PLAY_ALL bookkeeping
	Queue      []models.Topic
	QueueIndex int
}

// Controller owns the pending command slot and the playback state.
// Safe for concurrent use; the orchestrator issues from request
// goroutines while the player loop consumes.
type Controller struct {
	mu      sync.Mutex
	pending *Command
	state   State
	player  Player
}

// NewController creates a controller bound to a player backend.
func NewController(player Player) *Controller {
	return &Controller{player: player}
}

// Issue stages a command. A newer command replaces an unconsumed older
// one — the player only ever acts on the latest intent.
func (c *Controller) Issue(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &cmd
}

// Consume takes the pending command, clearing the slot so a re-render
// cannot apply it twice. Returns nil when nothing is pending.
func (c *Controller) Consume() *Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := c.pending
	c.pending = nil
	return cmd
}

// Apply consumes the pending command, if any, and applies it.
func (c *Controller) Apply() error {
	cmd := c.Consume()
	if cmd == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// One handler per tag, each producing the new state.
	switch cmd.Kind {
	case CmdSeek:
		c.state = c.applySeek(cmd.Time)
	case CmdPlayTopic:
		if cmd.Topic == nil {
			return fmt.Errorf("PLAY_TOPIC command without topic")
		}
		c.state = c.applyPlayTopic(*cmd.Topic)
	case CmdPlaySegment:
		if cmd.Segment == nil {
			return fmt.Errorf("PLAY_SEGMENT command without segment")
		}
		c.state = c.applyPlaySegment(*cmd.Segment)
	case CmdPlayCitations:
		c.state = c.applyPlayTopic(BuildCitationReel(cmd.Citations))
	case CmdPlayAll:
		c.state = c.applyPlayAll(cmd.Topics)
	case CmdPlay:
		c.state.Playing = true
		c.player.Play()
	case CmdPause:
		c.state.Playing = false
		c.player.Pause()
	default:
		return fmt.Errorf("unknown playback command %q", cmd.Kind)
	}
	return nil
}

// State returns a snapshot of the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) applySeek(t float64) State {
	s := c.state
	s.Position = t
	c.player.Seek(t)
	return s
}

func (c *Controller) applyPlayTopic(topic models.Topic) State {
	s := State{Playing: true, Topic: &topic, SegmentIndex: 0}
	if len(topic.Segments) > 0 {
		s.Position = topic.Segments[0].Start
		c.player.Seek(s.Position)
	}
	c.player.Play()
	return s
}

func (c *Controller) applyPlaySegment(seg models.TopicSegment) State {
	synthetic := models.Topic{Segments: []models.TopicSegment{seg}}
	return c.applyPlayTopic(synthetic)
}

func (c *Controller) applyPlayAll(topics []models.Topic) State {
	if len(topics) == 0 {
		return State{}
	}
	s := c.applyPlayTopic(topics[0])
	s.Queue = topics
	s.QueueIndex = 0
	return s
}

// OnTimeUpdate feeds the player's clock into the controller. When the
// active segment's end is reached it advances: next segment, then next
// queued topic, then stop after the last.
func (c *Controller) OnTimeUpdate(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Position = position
	topic := c.state.Topic
	if topic == nil || !c.state.Playing {
		return
	}
	if c.state.SegmentIndex >= len(topic.Segments) {
		return
	}
	if position < topic.Segments[c.state.SegmentIndex].End {
		return
	}

	// Segment finished; advance within the topic first.
	if c.state.SegmentIndex+1 < len(topic.Segments) {
		c.state.SegmentIndex++
		c.state.Position = topic.Segments[c.state.SegmentIndex].Start
		c.player.Seek(c.state.Position)
		return
	}

	// Topic finished; advance the PLAY_ALL queue if one is running.
	if c.state.Queue != nil && c.state.QueueIndex+1 < len(c.state.Queue) {
		queue, idx := c.state.Queue, c.state.QueueIndex+1
		c.state = c.applyPlayTopic(queue[idx])
		c.state.Queue = queue
		c.state.QueueIndex = idx
		return
	}

	// Nothing left to play.
	c.state.Playing = false
	c.state.Topic = nil
	c.state.Queue = nil
	c.player.Pause()
}

// BuildCitationReel assembles a synthetic topic from chat-answer
// citations. It plays with the same advance-on-segment-end protocol as a
// generated topic.
func BuildCitationReel(citations []models.Citation) models.Topic {
	topic := models.Topic{
		ID:             uuid.New().String(),
		Title:          "Cited moments",
		Description:    "Clips referenced by the answer",
		IsCitationReel: true,
		AutoPlay:       true,
	}
	for _, cit := range citations {
		if cit.End <= cit.Start {
			continue
		}
		topic.Segments = append(topic.Segments, models.TopicSegment{Start: cit.Start, End: cit.End})
		topic.Duration += cit.End - cit.Start
	}
	return topic
}
