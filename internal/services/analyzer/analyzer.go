// Package analyzer orchestrates the full video analysis flow.
//
// Given a URL it checks the cache; on a hit it returns the stored analysis
// immediately and refreshes secondary fields in the background; on a miss
// it fetches transcript and metadata in parallel, generates topics and a
// summary in parallel, and persists the result. Transcript and topics are
// essential — their failures abort the request. Metadata, summary,
// questions, and persistence are decorative — their failures degrade
// gracefully and never block results that are already available.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/limits"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/platform"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// Sentinel errors the HTTP layer maps to user-facing categories.
var (
	// ErrBadURL means the URL matched no supported platform.
	ErrBadURL = errors.New("unsupported or malformed video URL")

	// ErrSignInRequired means an anonymous caller exhausted the daily
	// quota. The video URL is parked on the session for post-sign-in
	// resumption.
	ErrSignInRequired = errors.New("daily limit reached; sign in to continue")

	// ErrLimitReached means an authenticated caller exhausted the daily
	// quota.
	ErrLimitReached = errors.New("daily limit reached")

	// ErrSuperseded means a newer request replaced this one; its response
	// was discarded.
	ErrSuperseded = errors.New("request superseded by a newer one")
)

// Store is the slice of the database the orchestrator needs.
type Store interface {
	GetAnalysis(ctx context.Context, p models.Platform, externalID string) (*models.VideoAnalysis, error)
	UpsertAnalysis(ctx context.Context, a *models.VideoAnalysis) error
	UpdateAnalysis(ctx context.Context, a *models.VideoAnalysis) error
	LinkUserVideo(ctx context.Context, userID string, p models.Platform, externalID string) error
}

// Insights is the slice of the AI service the orchestrator needs.
type Insights interface {
	GenerateTopics(ctx context.Context, info *models.VideoInfo, segments []models.TranscriptSegment) ([]models.Topic, error)
	GenerateSummary(ctx context.Context, segments []models.TranscriptSegment) (string, error)
	GenerateQuestions(ctx context.Context, segments []models.TranscriptSegment, summary string) ([]string, error)
	GroupThemes(ctx context.Context, theme string, topics []models.Topic, segments []models.TranscriptSegment) ([]models.Topic, error)
	Model() string
}

// Caller identifies who is asking. UserID is empty for anonymous callers,
// who are keyed by IP instead.
type Caller struct {
	UserID string
	IP     string
}

func (c Caller) key() string {
	if c.UserID != "" {
		return "user:" + c.UserID
	}
	return "ip:" + c.IP
}

// Result is the batched outcome of one analysis.
type Result struct {
	Cached             bool                       `json:"cached"`
	Platform           models.Platform            `json:"platform"`
	VideoID            string                     `json:"video_id"`
	VideoInfo          *models.VideoInfo          `json:"video_info"`
	Transcript         []models.TranscriptSegment `json:"transcript"`
	Topics             []models.Topic             `json:"topics"`
	Summary            string                     `json:"summary,omitempty"`
	SuggestedQuestions []string                   `json:"suggested_questions,omitempty"`
}

// clone copies a result so no two owners alias the same slices. The
// session, the HTTP response, and the background persistence each get
// their own copy; a later theme regrouping must never mutate a result
// someone else is serializing.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.VideoInfo != nil {
		vi := *r.VideoInfo
		cp.VideoInfo = &vi
	}
	cp.Transcript = append([]models.TranscriptSegment(nil), r.Transcript...)
	cp.Topics = append([]models.Topic(nil), r.Topics...)
	cp.SuggestedQuestions = append([]string(nil), r.SuggestedQuestions...)
	return &cp
}

// Options carries the orchestrator's tunables.
type Options struct {
	TranscriptTimeout time.Duration
	MetadataTimeout   time.Duration
	SummaryTimeout    time.Duration
	AnonDailyLimit    int
	UserDailyLimit    int
}

// Service is the analysis orchestrator.
type Service struct {
	providers map[models.Platform]provider.Client
	store     Store
	insights  Insights
	limits    limits.Store
	opts      Options

	mu       sync.Mutex
	sessions map[string]*Session

	// Fire-and-forget work is tracked so tests can wait for it.
	bg sync.WaitGroup

	// Overridable in tests.
	sleep func(time.Duration)
}

// New creates the orchestrator.
func New(providers map[models.Platform]provider.Client, store Store, ai Insights, limitStore limits.Store, opts Options) *Service {
	return &Service{
		providers: providers,
		store:     store,
		insights:  ai,
		limits:    limitStore,
		opts:      opts,
		sessions:  make(map[string]*Session),
		sleep:     time.Sleep,
	}
}

// Session returns the session for id, creating it on first use.
func (s *Service) Session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession()
		s.sessions[id] = sess
	}
	return sess
}

// Analyze runs the full flow for a URL: cache check, then either the hit
// path (stored result + background refresh) or the miss path (quota check,
// parallel fetch, parallel generation, background persistence).
func (s *Service) Analyze(ctx context.Context, sessionID string, caller Caller, rawURL string) (*Result, error) {
	p, videoID := platform.Parse(rawURL)
	if p == "" || videoID == "" {
		return nil, fmt.Errorf("%q: %w", rawURL, ErrBadURL)
	}

	client, ok := s.providers[p]
	if !ok {
		return nil, fmt.Errorf("no provider for platform %s: %w", p, ErrBadURL)
	}

	sess := s.Session(sessionID)

	// Cache read first — hits don't consume quota.
	if row, err := s.store.GetAnalysis(ctx, p, videoID); err == nil && len(row.Topics) > 0 {
		return s.analyzeCached(sess, p, videoID, row)
	} else if err != nil && !errors.Is(err, database.ErrAnalysisNotFound) {
		log.Printf("⚠️  Cache read failed for %s/%s, analyzing fresh: %v", p, videoID, err)
	}

	return s.analyzeNew(ctx, sess, caller, client, p, videoID, rawURL)
}

// analyzeCached is the hit path: populate the result synchronously from
// the stored row, then refresh missing secondary fields in the background.
func (s *Service) analyzeCached(sess *Session, p models.Platform, videoID string, row *models.VideoAnalysis) (*Result, error) {
	sess.setState(StateLoadingCached)
	defer sess.setState(StateIdle)

	log.Printf("✅ Cache hit for %s/%s", p, videoID)
	result := resultFromRow(row)
	sess.setResult(result)

	// The stored groupings may predate prompt or model changes; refresh
	// them in the background and let the merge-upsert keep whatever is
	// newest. The caller already has the stored topics.
	s.goBackground(func(ctx context.Context) {
		topics, err := s.insights.GenerateTopics(ctx, result.VideoInfo, result.Transcript)
		if err != nil {
			log.Printf("⚠️  Background topic refresh failed for %s/%s: %v", p, videoID, err)
			return
		}
		raw, _ := json.Marshal(topics)
		model := s.insights.Model()
		update := &models.VideoAnalysis{Platform: p, ExternalID: videoID, Topics: raw, ModelUsed: &model}
		if err := s.store.UpdateAnalysis(ctx, update); err != nil {
			log.Printf("⚠️  Failed to persist refreshed topics for %s/%s: %v", p, videoID, err)
			return
		}
		sess.applyTopics(topics)
	})

	if result.Summary == "" {
		s.goBackground(func(ctx context.Context) {
			summary, err := s.insights.GenerateSummary(ctx, result.Transcript)
			if err != nil {
				log.Printf("⚠️  Background summary refresh failed for %s/%s: %v", p, videoID, err)
				return
			}
			model := s.insights.Model()
			update := &models.VideoAnalysis{Platform: p, ExternalID: videoID, Summary: &summary, ModelUsed: &model}
			if err := s.store.UpdateAnalysis(ctx, update); err != nil {
				log.Printf("⚠️  Failed to persist refreshed summary for %s/%s: %v", p, videoID, err)
			}
		})
	}

	return result, nil
}

// analyzeNew is the miss path.
func (s *Service) analyzeNew(ctx context.Context, sess *Session, caller Caller, client provider.Client, p models.Platform, videoID, rawURL string) (*Result, error) {
	// Quota gate before any provider traffic.
	if err := s.consumeQuota(ctx, sess, caller, rawURL); err != nil {
		return nil, err
	}

	sess.setState(StateAnalyzingNew)
	defer sess.setState(StateIdle)

	log.Printf("🚀 Analyzing %s/%s", p, videoID)

	// Transcript and metadata fetch concurrently. Transcript failure is
	// fatal; metadata failure degrades to a placeholder.
	var (
		segments []models.TranscriptSegment
		info     *models.VideoInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tctx, cancel := context.WithTimeout(gctx, s.opts.TranscriptTimeout)
		defer cancel()
		segs, lang, err := client.FetchTranscript(tctx, videoID)
		if err != nil {
			return fmt.Errorf("transcript fetch failed: %w", err)
		}
		log.Printf("✅ Transcript fetched: %d segments (lang=%s)", len(segs), lang)
		segments = segs
		return nil
	})
	g.Go(func() error {
		mctx, cancel := context.WithTimeout(gctx, s.opts.MetadataTimeout)
		defer cancel()
		vi, err := client.FetchVideoInfo(mctx, videoID)
		if err != nil {
			log.Printf("⚠️  Metadata fetch failed for %s/%s, using placeholder: %v", p, videoID, err)
			info = &models.VideoInfo{VideoID: videoID, Title: "Untitled video"}
			return nil
		}
		info = vi
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Topics and summary generate concurrently. Topics are essential: a
	// topics failure cancels the in-flight summary and propagates. The
	// summary is decorative: its own failure only logs.
	var (
		topics  []models.Topic
		summary string
	)
	gen, genctx := errgroup.WithContext(ctx)
	gen.Go(func() error {
		t, err := s.insights.GenerateTopics(genctx, info, segments)
		if err != nil {
			return fmt.Errorf("topic generation failed: %w", err)
		}
		topics = t
		return nil
	})
	gen.Go(func() error {
		sctx, cancel := context.WithTimeout(genctx, s.opts.SummaryTimeout)
		defer cancel()
		sum, err := s.insights.GenerateSummary(sctx, segments)
		if err != nil {
			log.Printf("⚠️  Summary generation failed for %s/%s: %v", p, videoID, err)
			return nil
		}
		summary = sum
		return nil
	})
	if err := gen.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Platform:   p,
		VideoID:    videoID,
		VideoInfo:  info,
		Transcript: segments,
		Topics:     topics,
		Summary:    summary,
	}
	sess.setResult(result)

	// Persistence and question generation run best-effort in the
	// background; the caller already has the result. Each goroutine gets
	// its own snapshot so nothing aliases the returned pointer.
	snapshot := result.clone()
	s.goBackground(func(bctx context.Context) {
		s.persistResult(bctx, snapshot)
	})
	s.goBackground(func(bctx context.Context) {
		questions, err := s.insights.GenerateQuestions(bctx, segments, summary)
		if err != nil {
			log.Printf("⚠️  Question generation failed for %s/%s: %v", p, videoID, err)
			return
		}
		raw, _ := json.Marshal(questions)
		update := &models.VideoAnalysis{Platform: p, ExternalID: videoID, SuggestedQuestions: raw}
		if err := s.store.UpdateAnalysis(bctx, update); err != nil {
			log.Printf("⚠️  Failed to persist questions for %s/%s: %v", p, videoID, err)
		}
	})

	return result, nil
}

// consumeQuota charges one generation against the caller's daily limit.
func (s *Service) consumeQuota(ctx context.Context, sess *Session, caller Caller, rawURL string) error {
	limit := s.opts.AnonDailyLimit
	if caller.UserID != "" {
		limit = s.opts.UserDailyLimit
	}

	allowed, _, err := s.limits.Consume(ctx, caller.key(), limit)
	if err != nil {
		return fmt.Errorf("failed to check daily limit: %w", err)
	}
	if allowed {
		return nil
	}

	if caller.UserID == "" {
		// Park the URL so the flow resumes after sign-in.
		sess.parkVideo(rawURL)
		return ErrSignInRequired
	}
	return ErrLimitReached
}

// CheckLimit reports quota standing without consuming any.
func (s *Service) CheckLimit(ctx context.Context, caller Caller) (*models.CheckLimitResponse, error) {
	if caller.UserID != "" {
		remaining, err := s.limits.Peek(ctx, caller.key(), s.opts.UserDailyLimit)
		if err != nil {
			return nil, err
		}
		can := remaining > 0
		return &models.CheckLimitResponse{Authenticated: true, CanGenerate: &can}, nil
	}

	remaining, err := s.limits.Peek(ctx, caller.key(), s.opts.AnonDailyLimit)
	if err != nil {
		return nil, err
	}
	return &models.CheckLimitResponse{Authenticated: false, Remaining: &remaining}, nil
}

// SelectTheme regroups the session's topics around a theme. Selecting a
// new theme while a previous request is in flight cancels the old one;
// only the newest response is ever applied.
func (s *Service) SelectTheme(ctx context.Context, sessionID, theme string) ([]models.Topic, error) {
	sess := s.Session(sessionID)
	result := sess.Result()
	if result == nil {
		return nil, fmt.Errorf("no analysis loaded for session")
	}

	tctx, seq := sess.tracker.Begin(ctx)
	topics, err := s.insights.GroupThemes(tctx, theme, result.Topics, result.Transcript)
	if !sess.tracker.IsCurrent(seq) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("theme regrouping failed: %w", err)
	}

	sess.applyTopics(topics)
	return topics, nil
}

// LinkVideo attaches an analysis to a user's account. Called right after
// sign-in, when the row written by a pre-auth analysis may not be visible
// yet — retries up to 3 times with linear backoff.
func (s *Service) LinkVideo(ctx context.Context, userID string, p models.Platform, videoID string) error {
	backoff := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

	err := s.store.LinkUserVideo(ctx, userID, p, videoID)
	for attempt := 0; errors.Is(err, database.ErrAnalysisNotFound) && attempt < len(backoff); attempt++ {
		log.Printf("⚠️  Analysis %s/%s not visible yet, retrying in %s", p, videoID, backoff[attempt])
		s.sleep(backoff[attempt])
		err = s.store.LinkUserVideo(ctx, userID, p, videoID)
	}
	if err != nil {
		return fmt.Errorf("failed to link video: %w", err)
	}
	return nil
}

// persistResult writes a completed analysis to the cache.
func (s *Service) persistResult(ctx context.Context, r *Result) {
	transcript, _ := json.Marshal(r.Transcript)
	topics, _ := json.Marshal(r.Topics)
	model := s.insights.Model()

	row := &models.VideoAnalysis{
		Platform:   r.Platform,
		ExternalID: r.VideoID,
		Transcript: transcript,
		Topics:     topics,
		ModelUsed:  &model,
	}
	if r.VideoInfo != nil {
		row.Title = r.VideoInfo.Title
		row.Author = r.VideoInfo.Author
		row.Thumbnail = r.VideoInfo.Thumbnail
		row.Duration = r.VideoInfo.Duration
	}
	if r.Summary != "" {
		row.Summary = &r.Summary
	}

	if err := s.store.UpsertAnalysis(ctx, row); err != nil {
		log.Printf("⚠️  Failed to persist analysis for %s/%s: %v", r.Platform, r.VideoID, err)
		return
	}
	log.Printf("✅ Analysis persisted for %s/%s", r.Platform, r.VideoID)
}

// goBackground runs fire-and-forget work with its own timeout, detached
// from the request context.
func (s *Service) goBackground(fn func(context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		fn(ctx)
	}()
}

// resultFromRow decodes a stored analysis row into a result.
func resultFromRow(row *models.VideoAnalysis) *Result {
	result := &Result{
		Cached:   true,
		Platform: row.Platform,
		VideoID:  row.ExternalID,
		VideoInfo: &models.VideoInfo{
			VideoID:   row.ExternalID,
			Title:     row.Title,
			Author:    row.Author,
			Thumbnail: row.Thumbnail,
			Duration:  row.Duration,
		},
	}
	if row.Summary != nil {
		result.Summary = *row.Summary
	}
	if len(row.Transcript) > 0 {
		if err := json.Unmarshal(row.Transcript, &result.Transcript); err != nil {
			log.Printf("⚠️  Corrupt transcript JSON for %s/%s: %v", row.Platform, row.ExternalID, err)
		}
	}
	if len(row.Topics) > 0 {
		if err := json.Unmarshal(row.Topics, &result.Topics); err != nil {
			log.Printf("⚠️  Corrupt topics JSON for %s/%s: %v", row.Platform, row.ExternalID, err)
		}
	}
	if len(row.SuggestedQuestions) > 0 {
		if err := json.Unmarshal(row.SuggestedQuestions, &result.SuggestedQuestions); err != nil {
			log.Printf("⚠️  Corrupt questions JSON for %s/%s: %v", row.Platform, row.ExternalID, err)
		}
	}
	return result
}
