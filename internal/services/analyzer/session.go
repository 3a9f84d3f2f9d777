// session.go tracks per-session analysis state.
//
// Each client session owns one Session: the page-state machine, the latest
// applied result, a parked video URL for post-sign-in resumption, and a
// request tracker for superseding in-flight theme requests. All in-flight
// request bookkeeping lives on this object — there is no package-level map
// of pending requests.
package analyzer

import (
	"context"
	"sync"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// State is the page-level analysis state.
type State string

const (
	StateIdle          State = "IDLE"
	StateAnalyzingNew  State = "ANALYZING_NEW"
	StateLoadingCached State = "LOADING_CACHED"
)

// Session holds the analysis state for one client session.
type Session struct {
	mu           sync.Mutex
	state        State
	result       *Result
	pendingVideo string // URL parked when an anonymous caller hits the limit

	tracker RequestTracker
}

func newSession() *Session {
	return &Session{state: StateIdle}
}

// State returns the current page state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Result returns a copy of the latest applied analysis result, or nil.
// Copies in and out keep the session's result private to its mutex: no
// caller ever holds a pointer into session state.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.clone()
}

func (s *Session) setResult(r *Result) {
	s.mu.Lock()
	s.result = r.clone()
	s.mu.Unlock()
}

// PendingVideo returns and clears the URL parked for post-sign-in
// resumption.
func (s *Session) PendingVideo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := s.pendingVideo
	s.pendingVideo = ""
	return url
}

func (s *Session) parkVideo(url string) {
	s.mu.Lock()
	s.pendingVideo = url
	s.mu.Unlock()
}

// applyTopics swaps the topics on the session result, used by theme
// regrouping once a response is confirmed current. The slice is copied
// because the caller also returns it to the HTTP layer.
func (s *Session) applyTopics(topics []models.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		s.result.Topics = append([]models.Topic(nil), topics...)
	}
}

// RequestTracker serializes superseding requests. Each Begin cancels the
// previous request's context and hands back a sequence number; responses
// check their number against the current one and are discarded when stale.
// Late-arriving responses for superseded requests must never reach view
// state.
type RequestTracker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Begin registers a new request, cancelling any in-flight predecessor.
func (t *RequestTracker) Begin(parent context.Context) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	t.seq++
	t.cancel = cancel
	return ctx, t.seq
}

// IsCurrent reports whether seq still identifies the active request.
func (t *RequestTracker) IsCurrent(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return seq == t.seq
}
