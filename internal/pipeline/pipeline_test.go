package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/recipe-crawler/internal/domain"
	"github.com/user/recipe-crawler/internal/monitoring"
	"github.com/user/recipe-crawler/internal/transcript"
)

type fakeSource struct {
	videos []domain.Video
	err    error
}

func (f *fakeSource) List(ctx context.Context, channelURL string, limit int) ([]domain.Video, error) {
	return f.videos, f.err
}

type fakeTranscripts struct {
	texts map[string]string // videoID -> transcript; missing means unavailable
	calls []string
}

func (f *fakeTranscripts) Fetch(ctx context.Context, videoID string) (string, error) {
	f.calls = append(f.calls, videoID)
	if text, ok := f.texts[videoID]; ok {
		return text, nil
	}
	return "", transcript.ErrUnavailable
}

type fakeArtifact struct {
	path     string
	released bool
}

func (f *fakeArtifact) Path() string { return f.path }

func (f *fakeArtifact) Release() error {
	f.released = true
	return nil
}

type fakeAudio struct {
	err       error
	calls     int
	artifacts []*fakeArtifact
}

func (f *fakeAudio) DownloadAudio(ctx context.Context, videoID string) (AudioArtifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a := &fakeArtifact{path: "/tmp/recipe_" + videoID + ".mp3"}
	f.artifacts = append(f.artifacts, a)
	return a, nil
}

type fakeExtractor struct {
	rec        *domain.ExtractedRecipe
	err        error
	textCalls  int
	audioCalls int
}

func (f *fakeExtractor) FromText(ctx context.Context, transcriptText, title string) (*domain.ExtractedRecipe, error) {
	f.textCalls++
	return f.rec, f.err
}

func (f *fakeExtractor) FromAudio(ctx context.Context, audioPath, title string) (*domain.ExtractedRecipe, error) {
	f.audioCalls++
	return f.rec, f.err
}

type savedRecipe struct {
	rec      *domain.ExtractedRecipe
	chefID   string
	videoID  string
	videoURL string
}

type fakeStore struct {
	existing    map[string]bool
	saved       []savedRecipe
	saveErr     error
	existsCalls int
}

func (f *fakeStore) Exists(ctx context.Context, videoID string) (bool, error) {
	f.existsCalls++
	return f.existing[videoID], nil
}

func (f *fakeStore) Save(ctx context.Context, rec *domain.ExtractedRecipe, chefID, videoID, videoURL string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, savedRecipe{rec: rec, chefID: chefID, videoID: videoID, videoURL: videoURL})
	return "recipe-1", nil
}

type fakeCache struct {
	recent map[string]bool
	marked []string
}

func (f *fakeCache) IsRecentlyIngested(ctx context.Context, videoID string) (bool, error) {
	return f.recent[videoID], nil
}

func (f *fakeCache) MarkIngested(ctx context.Context, videoID string, ttl time.Duration) error {
	f.marked = append(f.marked, videoID)
	return nil
}

func recipePayload() *domain.ExtractedRecipe {
	return &domain.ExtractedRecipe{
		Title: "김치볶음밥",
		Ingredients: []domain.RecipeIngredient{
			{Name: "김치", Amount: "1컵"},
			{Name: "밥", Amount: "2공기"},
			{Name: "양파", Amount: "반 개"},
		},
		Steps: []domain.RecipeStep{
			{Order: 1, Description: "김치를 볶는다"},
			{Order: 2, Description: "밥을 넣는다"},
			{Order: 3, Description: "간을 맞춘다"},
			{Order: 4, Description: "담아낸다"},
		},
		Time:      "15분",
		Nutrition: domain.Nutrition{Calories: 520, Protein: "12g", Fat: "14g", Carbs: "80g"},
		IsRecipe:  true,
	}
}

type fixture struct {
	source      *fakeSource
	transcripts *fakeTranscripts
	audio       *fakeAudio
	extractor   *fakeExtractor
	store       *fakeStore
	cache       *fakeCache
	pipeline    *Pipeline
}

func newFixture(videos ...domain.Video) *fixture {
	f := &fixture{
		source:      &fakeSource{videos: videos},
		transcripts: &fakeTranscripts{texts: map[string]string{}},
		audio:       &fakeAudio{},
		extractor:   &fakeExtractor{},
		store:       &fakeStore{existing: map[string]bool{}},
		cache:       &fakeCache{recent: map[string]bool{}},
	}
	f.pipeline = New(Config{
		Source:      f.source,
		Transcripts: f.transcripts,
		Audio:       f.audio,
		Extractor:   f.extractor,
		Store:       f.store,
		Cache:       f.cache,
		ChannelURL:  "https://www.youtube.com/@somechef",
		ChefID:      "chef-1",
		VideoLimit:  100,
		CacheTTL:    time.Hour,
	}, monitoring.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
	return f
}

func TestRunSavesRecipeFromTranscript(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "김치볶음밥 만들기"})
	f.transcripts.texts["abc123"] = "먼저 김치를 볶습니다"
	f.extractor.rec = recipePayload()

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Saved != 1 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 saved", summary)
	}
	if len(f.store.saved) != 1 {
		t.Fatalf("store received %d saves, want 1", len(f.store.saved))
	}
	saved := f.store.saved[0]
	if saved.videoURL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("videoURL = %q", saved.videoURL)
	}
	if saved.chefID != "chef-1" {
		t.Errorf("chefID = %q", saved.chefID)
	}
	if len(saved.rec.Ingredients) != 3 || len(saved.rec.Steps) != 4 {
		t.Errorf("saved %d ingredients, %d steps; want 3 and 4",
			len(saved.rec.Ingredients), len(saved.rec.Steps))
	}
	if f.extractor.textCalls != 1 || f.extractor.audioCalls != 0 {
		t.Errorf("extractor calls text=%d audio=%d, want 1 and 0",
			f.extractor.textCalls, f.extractor.audioCalls)
	}
	if f.audio.calls != 0 {
		t.Errorf("audio fetcher called %d times, want 0", f.audio.calls)
	}
	if len(f.cache.marked) != 1 || f.cache.marked[0] != "abc123" {
		t.Errorf("cache marked = %v, want [abc123]", f.cache.marked)
	}
}

func TestRunSkipsDuplicateWithoutFetching(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "dup"})
	f.store.existing["abc123"] = true

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 || summary.Saved != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	if len(f.transcripts.calls) != 0 {
		t.Errorf("transcript fetched for duplicate video")
	}
	if f.extractor.textCalls+f.extractor.audioCalls != 0 {
		t.Errorf("extractor called for duplicate video")
	}
	if f.audio.calls != 0 {
		t.Errorf("audio downloaded for duplicate video")
	}
}

func TestRunCacheHitSkipsStoreQuery(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "dup"})
	f.cache.recent["abc123"] = true

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	if f.store.existsCalls != 0 {
		t.Errorf("store queried %d times despite cache hit", f.store.existsCalls)
	}
}

func TestRunFallsBackToAudio(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "쇼츠 레시피"})
	// No transcript entry: fetcher reports unavailable.
	f.extractor.rec = recipePayload()

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Saved != 1 {
		t.Errorf("summary = %+v, want 1 saved", summary)
	}
	if f.extractor.textCalls != 0 {
		t.Errorf("text extraction ran despite missing transcript")
	}
	if f.audio.calls != 1 || f.extractor.audioCalls != 1 {
		t.Errorf("audio path calls download=%d extract=%d, want 1 and 1",
			f.audio.calls, f.extractor.audioCalls)
	}
	if len(f.audio.artifacts) != 1 || !f.audio.artifacts[0].released {
		t.Error("temp audio artifact was not released")
	}
}

func TestRunReleasesAudioOnExtractionFailure(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "broken"})
	f.extractor.err = errors.New("model timeout")

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if len(f.audio.artifacts) != 1 || !f.audio.artifacts[0].released {
		t.Error("temp audio artifact was not released after failed extraction")
	}
	if len(f.store.saved) != 0 {
		t.Error("recipe saved despite extraction failure")
	}
}

func TestRunAudioDownloadFailure(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "private video"})
	f.audio.err = errors.New("403 forbidden")

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 || summary.Saved != 0 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if f.extractor.textCalls+f.extractor.audioCalls != 0 {
		t.Error("extractor called despite failed audio download")
	}
	if len(f.store.saved) != 0 {
		t.Error("rows written despite failed audio download")
	}
}

func TestRunNotARecipeShortCircuit(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "먹방"})
	f.transcripts.texts["abc123"] = "오늘은 그냥 먹기만 합니다"
	f.extractor.rec = &domain.ExtractedRecipe{IsRecipe: false}

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 || summary.Saved != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	if len(f.store.saved) != 0 {
		t.Error("store.Save called for a not-a-recipe verdict")
	}
}

func TestRunSaveErrorCountsAsFailed(t *testing.T) {
	f := newFixture(domain.Video{ID: "abc123", Title: "김치찌개"})
	f.transcripts.texts["abc123"] = "김치찌개 끓이기"
	f.extractor.rec = recipePayload()
	f.store.saveErr = errors.New("constraint violation")

	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 || summary.Saved != 0 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if len(f.cache.marked) != 0 {
		t.Errorf("cache marked %v despite save failure", f.cache.marked)
	}
}

func TestRunSourceErrorIsFatal(t *testing.T) {
	f := newFixture()
	f.source.err = errors.New("channel not found")

	if _, err := f.pipeline.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error when listing fails")
	}
}

func TestRunProcessesVideosInListingOrder(t *testing.T) {
	f := newFixture(
		domain.Video{ID: "first", Title: "a"},
		domain.Video{ID: "second", Title: "b"},
		domain.Video{ID: "third", Title: "c"},
	)
	f.transcripts.texts["first"] = "t"
	f.transcripts.texts["second"] = "t"
	f.transcripts.texts["third"] = "t"
	f.extractor.rec = recipePayload()

	if _, err := f.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(f.transcripts.calls) != len(want) {
		t.Fatalf("processed %d videos, want %d", len(f.transcripts.calls), len(want))
	}
	for i, id := range want {
		if f.transcripts.calls[i] != id {
			t.Errorf("position %d processed %q, want %q", i, f.transcripts.calls[i], id)
		}
	}
}

func TestRunSecondPassSavesNothing(t *testing.T) {
	videos := []domain.Video{
		{ID: "aaa", Title: "recipe one"},
		{ID: "bbb", Title: "recipe two"},
	}
	f := newFixture(videos...)
	f.transcripts.texts["aaa"] = "t"
	f.transcripts.texts["bbb"] = "t"
	f.extractor.rec = recipePayload()

	if _, err := f.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if len(f.store.saved) != 2 {
		t.Fatalf("first run saved %d, want 2", len(f.store.saved))
	}

	// Second run over the same listing: everything previously saved now
	// matches the dedup check.
	for _, v := range videos {
		f.store.existing[v.ID] = true
	}
	summary, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(f.store.saved) != 2 {
		t.Errorf("second run created %d new rows", len(f.store.saved)-2)
	}
	if summary.Skipped != 2 || summary.Saved != 0 {
		t.Errorf("second run summary = %+v, want 2 skipped", summary)
	}
}
