package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/limits"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// --- Fakes ---

type fakeProvider struct {
	mu              sync.Mutex
	transcriptCalls int
	infoCalls       int
	transcriptErr   error
	infoErr         error
}

func (f *fakeProvider) FetchTranscript(ctx context.Context, id string) ([]models.TranscriptSegment, string, error) {
	f.mu.Lock()
	f.transcriptCalls++
	f.mu.Unlock()
	if f.transcriptErr != nil {
		return nil, "", f.transcriptErr
	}
	return []models.TranscriptSegment{
		{Text: "hello", Start: 0, Duration: 5},
		{Text: "world", Start: 5, Duration: 5},
	}, "en", nil
}

func (f *fakeProvider) FetchVideoInfo(ctx context.Context, id string) (*models.VideoInfo, error) {
	f.mu.Lock()
	f.infoCalls++
	f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &models.VideoInfo{VideoID: id, Title: "A Video", Author: "Someone", Duration: 100}, nil
}

func (f *fakeProvider) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcriptCalls, f.infoCalls
}

type fakeStore struct {
	mu               sync.Mutex
	rows             map[string]*models.VideoAnalysis
	upserts          int
	updatedTopics    int
	updatedSummaries int
	updatedQuestions int
	linkCalls        int
	linkErrs         []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.VideoAnalysis)}
}

func (f *fakeStore) GetAnalysis(_ context.Context, p models.Platform, id string) (*models.VideoAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[string(p)+"/"+id]
	if !ok {
		return nil, database.ErrAnalysisNotFound
	}
	return row, nil
}

func (f *fakeStore) UpsertAnalysis(_ context.Context, a *models.VideoAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.rows[string(a.Platform)+"/"+a.ExternalID] = a
	return nil
}

func (f *fakeStore) UpdateAnalysis(_ context.Context, a *models.VideoAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Topics != nil {
		f.updatedTopics++
	}
	if a.Summary != nil {
		f.updatedSummaries++
	}
	if a.SuggestedQuestions != nil {
		f.updatedQuestions++
	}
	return nil
}

func (f *fakeStore) LinkUserVideo(_ context.Context, userID string, p models.Platform, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	if len(f.linkErrs) > 0 {
		err := f.linkErrs[0]
		f.linkErrs = f.linkErrs[1:]
		return err
	}
	return nil
}

type fakeInsights struct {
	topicsFn    func(ctx context.Context) ([]models.Topic, error)
	summaryFn   func(ctx context.Context) (string, error)
	questionsFn func(ctx context.Context) ([]string, error)
	themesFn    func(ctx context.Context, theme string) ([]models.Topic, error)
}

func (f *fakeInsights) GenerateTopics(ctx context.Context, _ *models.VideoInfo, _ []models.TranscriptSegment) ([]models.Topic, error) {
	if f.topicsFn != nil {
		return f.topicsFn(ctx)
	}
	return []models.Topic{{ID: "t1", Title: "Topic One"}}, nil
}

func (f *fakeInsights) GenerateSummary(ctx context.Context, _ []models.TranscriptSegment) (string, error) {
	if f.summaryFn != nil {
		return f.summaryFn(ctx)
	}
	return "a summary", nil
}

func (f *fakeInsights) GenerateQuestions(ctx context.Context, _ []models.TranscriptSegment, _ string) ([]string, error) {
	if f.questionsFn != nil {
		return f.questionsFn(ctx)
	}
	return []string{"Why?"}, nil
}

func (f *fakeInsights) GroupThemes(ctx context.Context, theme string, _ []models.Topic, _ []models.TranscriptSegment) ([]models.Topic, error) {
	if f.themesFn != nil {
		return f.themesFn(ctx, theme)
	}
	return []models.Topic{{ID: theme, Title: theme}}, nil
}

func (f *fakeInsights) Model() string { return "test/model" }

func testOptions() Options {
	return Options{
		TranscriptTimeout: 5 * time.Second,
		MetadataTimeout:   5 * time.Second,
		SummaryTimeout:    5 * time.Second,
		AnonDailyLimit:    3,
		UserDailyLimit:    20,
	}
}

func newTestService(p *fakeProvider, store *fakeStore, ai *fakeInsights) *Service {
	providers := map[models.Platform]provider.Client{
		models.PlatformYouTube:  p,
		models.PlatformBilibili: p,
	}
	s := New(providers, store, ai, limits.NewMemoryStore(), testOptions())
	s.sleep = func(time.Duration) {} // no real sleeping in tests
	return s
}

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// --- Tests ---

func TestAnalyze_MissPath(t *testing.T) {
	prov, store, ai := &fakeProvider{}, newFakeStore(), &fakeInsights{}
	s := newTestService(prov, store, ai)

	result, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if result.Cached {
		t.Error("miss path should not report cached")
	}
	if len(result.Topics) == 0 || len(result.Transcript) == 0 {
		t.Errorf("expected topics and transcript, got %d/%d", len(result.Topics), len(result.Transcript))
	}
	if result.Summary != "a summary" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if got := s.Session("sess1").State(); got != StateIdle {
		t.Errorf("final state = %s, want IDLE", got)
	}

	s.bg.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1 (background persistence)", store.upserts)
	}
	if store.updatedQuestions != 1 {
		t.Errorf("question updates = %d, want 1 (background questions)", store.updatedQuestions)
	}
}

func TestAnalyze_CacheHitSkipsProviders(t *testing.T) {
	prov, store, ai := &fakeProvider{}, newFakeStore(), &fakeInsights{}
	sum := "stored summary"
	store.rows["youtube/dQw4w9WgXcQ"] = &models.VideoAnalysis{
		Platform:   models.PlatformYouTube,
		ExternalID: "dQw4w9WgXcQ",
		Title:      "Cached Title",
		Transcript: []byte(`[{"text":"hi","start":0,"duration":2}]`),
		Topics:     []byte(`[{"id":"t1","title":"Stored Topic"}]`),
		Summary:    &sum,
	}
	s := newTestService(prov, store, ai)

	result, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if !result.Cached {
		t.Error("expected cached result")
	}
	if result.Topics[0].Title != "Stored Topic" || result.Summary != "stored summary" {
		t.Errorf("unexpected result: %+v", result)
	}
	if got := s.Session("sess1").State(); got != StateIdle {
		t.Errorf("final state = %s, want IDLE", got)
	}

	// Background refreshes use the AI service, never the providers.
	s.bg.Wait()
	if tc, ic := prov.calls(); tc != 0 || ic != 0 {
		t.Errorf("providers called on cache hit: transcript=%d info=%d", tc, ic)
	}
}

func TestAnalyze_CacheHitRefreshesMissingSummary(t *testing.T) {
	prov, store, ai := &fakeProvider{}, newFakeStore(), &fakeInsights{}
	store.rows["youtube/dQw4w9WgXcQ"] = &models.VideoAnalysis{
		Platform:   models.PlatformYouTube,
		ExternalID: "dQw4w9WgXcQ",
		Transcript: []byte(`[{"text":"hi","start":0,"duration":2}]`),
		Topics:     []byte(`[{"id":"t1","title":"Stored Topic"}]`),
	}
	s := newTestService(prov, store, ai)

	if _, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	s.bg.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.updatedSummaries != 1 {
		t.Errorf("summary updates = %d, want 1 (background summary refresh)", store.updatedSummaries)
	}
}

func TestAnalyze_CacheHitRefreshesTopicGroupings(t *testing.T) {
	prov, store := &fakeProvider{}, newFakeStore()
	ai := &fakeInsights{
		topicsFn: func(ctx context.Context) ([]models.Topic, error) {
			return []models.Topic{{ID: "fresh", Title: "Fresh Grouping"}}, nil
		},
	}
	sum := "stored summary"
	store.rows["youtube/dQw4w9WgXcQ"] = &models.VideoAnalysis{
		Platform:   models.PlatformYouTube,
		ExternalID: "dQw4w9WgXcQ",
		Transcript: []byte(`[{"text":"hi","start":0,"duration":2}]`),
		Topics:     []byte(`[{"id":"stale","title":"Stale Grouping"}]`),
		Summary:    &sum,
	}
	s := newTestService(prov, store, ai)

	result, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	// The synchronous response carries the stored topics.
	if result.Topics[0].ID != "stale" {
		t.Errorf("immediate topics = %q, want the stored grouping", result.Topics[0].ID)
	}

	s.bg.Wait()
	store.mu.Lock()
	topicUpdates := store.updatedTopics
	store.mu.Unlock()
	if topicUpdates != 1 {
		t.Errorf("topic updates = %d, want 1 (background regrouping)", topicUpdates)
	}
	if got := s.Session("sess1").Result().Topics[0].ID; got != "fresh" {
		t.Errorf("session topics after refresh = %q, want fresh", got)
	}
}

func TestAnalyze_TranscriptFailureIsFatal(t *testing.T) {
	prov := &fakeProvider{transcriptErr: provider.ErrNoCaptions}
	s := newTestService(prov, newFakeStore(), &fakeInsights{})

	_, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if !errors.Is(err, provider.ErrNoCaptions) {
		t.Errorf("expected ErrNoCaptions, got %v", err)
	}
	if got := s.Session("sess1").State(); got != StateIdle {
		t.Errorf("state after failure = %s, want IDLE", got)
	}
}

func TestAnalyze_MetadataFailureUsesPlaceholder(t *testing.T) {
	prov := &fakeProvider{infoErr: provider.ErrUpstream}
	s := newTestService(prov, newFakeStore(), &fakeInsights{})

	result, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err != nil {
		t.Fatalf("metadata failure should not abort: %v", err)
	}
	if result.VideoInfo == nil || result.VideoInfo.Title != "Untitled video" {
		t.Errorf("expected placeholder metadata, got %+v", result.VideoInfo)
	}
}

func TestAnalyze_TopicsFailureCancelsSummary(t *testing.T) {
	summaryCancelled := make(chan struct{})
	ai := &fakeInsights{
		topicsFn: func(ctx context.Context) ([]models.Topic, error) {
			return nil, errors.New("model refused")
		},
		summaryFn: func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				close(summaryCancelled)
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	}
	s := newTestService(&fakeProvider{}, newFakeStore(), ai)

	_, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err == nil {
		t.Fatal("expected topics failure to propagate")
	}

	select {
	case <-summaryCancelled:
	case <-time.After(2 * time.Second):
		t.Error("summary request was not cancelled after topics failed")
	}
}

func TestAnalyze_BadURL(t *testing.T) {
	s := newTestService(&fakeProvider{}, newFakeStore(), &fakeInsights{})

	_, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, "https://example.com/watch?v=nope")
	if !errors.Is(err, ErrBadURL) {
		t.Errorf("expected ErrBadURL, got %v", err)
	}
}

func TestAnalyze_AnonymousLimitParksVideo(t *testing.T) {
	prov := &fakeProvider{}
	s := newTestService(prov, newFakeStore(), &fakeInsights{})
	s.opts.AnonDailyLimit = 0

	_, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("expected ErrSignInRequired, got %v", err)
	}
	if tc, _ := prov.calls(); tc != 0 {
		t.Error("no transcript fetch should happen when the quota is exhausted")
	}
	if got := s.Session("sess1").PendingVideo(); got != testURL {
		t.Errorf("parked video = %q, want %q", got, testURL)
	}
	// Parked URL is consumed on read.
	if got := s.Session("sess1").PendingVideo(); got != "" {
		t.Errorf("pending video should clear after read, got %q", got)
	}
}

func TestAnalyze_AuthenticatedLimit(t *testing.T) {
	s := newTestService(&fakeProvider{}, newFakeStore(), &fakeInsights{})
	s.opts.UserDailyLimit = 0

	_, err := s.Analyze(context.Background(), "sess1", Caller{UserID: "u1", IP: "1.2.3.4"}, testURL)
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}
}

func TestCheckLimit(t *testing.T) {
	s := newTestService(&fakeProvider{}, newFakeStore(), &fakeInsights{})

	anon, err := s.CheckLimit(context.Background(), Caller{IP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("CheckLimit returned error: %v", err)
	}
	if anon.Authenticated || anon.Remaining == nil || *anon.Remaining != 3 {
		t.Errorf("anonymous response: %+v", anon)
	}

	authed, err := s.CheckLimit(context.Background(), Caller{UserID: "u1"})
	if err != nil {
		t.Fatalf("CheckLimit returned error: %v", err)
	}
	if !authed.Authenticated || authed.CanGenerate == nil || !*authed.CanGenerate {
		t.Errorf("authenticated response: %+v", authed)
	}
}

func TestSelectTheme_NewerRequestWins(t *testing.T) {
	themeARunning := make(chan struct{})
	releaseA := make(chan struct{})
	ai := &fakeInsights{
		themesFn: func(ctx context.Context, theme string) ([]models.Topic, error) {
			if theme == "A" {
				close(themeARunning)
				<-releaseA // A's response arrives after B's
			}
			return []models.Topic{{ID: theme, Title: theme}}, nil
		},
	}
	s := newTestService(&fakeProvider{}, newFakeStore(), ai)
	s.Session("sess1").setResult(&Result{Topics: []models.Topic{{ID: "orig"}}})

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = s.SelectTheme(context.Background(), "sess1", "A")
	}()

	<-themeARunning
	topicsB, errB := s.SelectTheme(context.Background(), "sess1", "B")
	close(releaseA)
	wg.Wait()

	if errB != nil {
		t.Fatalf("theme B returned error: %v", errB)
	}
	if len(topicsB) != 1 || topicsB[0].ID != "B" {
		t.Errorf("theme B topics: %+v", topicsB)
	}
	if !errors.Is(errA, ErrSuperseded) {
		t.Errorf("theme A should be superseded, got %v", errA)
	}
	if got := s.Session("sess1").Result().Topics[0].ID; got != "B" {
		t.Errorf("applied topics = %q, want B even though A finished later", got)
	}
}

func TestSelectTheme_DoesNotMutateReturnedResult(t *testing.T) {
	s := newTestService(&fakeProvider{}, newFakeStore(), &fakeInsights{})

	result, err := s.Analyze(context.Background(), "sess1", Caller{IP: "1.2.3.4"}, testURL)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	// Regrouping themes on the session must not touch the result already
	// handed to the caller — serializing it concurrently has to be safe.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if _, err := s.SelectTheme(context.Background(), "sess1", "history"); err != nil {
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		if _, err := json.Marshal(result); err != nil {
			t.Errorf("marshal failed: %v", err)
			break
		}
	}
	<-done

	if result.Topics[0].ID != "t1" {
		t.Errorf("returned result was mutated: topics[0].ID = %q, want t1", result.Topics[0].ID)
	}
	if got := s.Session("sess1").Result().Topics[0].ID; got != "history" {
		t.Errorf("session topics = %q, want the regrouped theme", got)
	}
}

func TestLinkVideo_RetriesWithBackoff(t *testing.T) {
	store := newFakeStore()
	store.linkErrs = []error{database.ErrAnalysisNotFound, database.ErrAnalysisNotFound}
	s := newTestService(&fakeProvider{}, store, &fakeInsights{})

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	err := s.LinkVideo(context.Background(), "u1", models.PlatformYouTube, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("LinkVideo returned error: %v", err)
	}
	if store.linkCalls != 3 {
		t.Errorf("linkCalls = %d, want 3", store.linkCalls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff = %v, want [1s 2s]", slept)
	}
}

func TestLinkVideo_GivesUpAfterRetries(t *testing.T) {
	store := newFakeStore()
	store.linkErrs = []error{
		database.ErrAnalysisNotFound, database.ErrAnalysisNotFound,
		database.ErrAnalysisNotFound, database.ErrAnalysisNotFound,
	}
	s := newTestService(&fakeProvider{}, store, &fakeInsights{})

	err := s.LinkVideo(context.Background(), "u1", models.PlatformYouTube, "dQw4w9WgXcQ")
	if !errors.Is(err, database.ErrAnalysisNotFound) {
		t.Errorf("expected ErrAnalysisNotFound after exhausting retries, got %v", err)
	}
	if store.linkCalls != 4 {
		t.Errorf("linkCalls = %d, want 4 (initial + 3 retries)", store.linkCalls)
	}
}
