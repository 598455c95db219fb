package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/recipe-crawler/internal/domain"
	"github.com/user/recipe-crawler/internal/monitoring"
	"github.com/user/recipe-crawler/internal/transcript"
	"github.com/user/recipe-crawler/pkg/youtube"
)

// VideoSource lists candidate videos for a channel.
type VideoSource interface {
	List(ctx context.Context, channelURL string, limit int) ([]domain.Video, error)
}

// TranscriptFetcher retrieves a transcript for a video, returning
// transcript.ErrUnavailable when none exists in any attempted language.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// AudioArtifact is a temporary local audio resource owned by the pipeline
// once fetched. Release must be safe to call on every exit path.
type AudioArtifact interface {
	Path() string
	Release() error
}

// AudioFetcher downloads the audio track of a video.
type AudioFetcher interface {
	DownloadAudio(ctx context.Context, videoID string) (AudioArtifact, error)
}

// RecipeExtractor derives a structured recipe from transcript text or from a
// local audio file.
type RecipeExtractor interface {
	FromText(ctx context.Context, transcriptText, title string) (*domain.ExtractedRecipe, error)
	FromAudio(ctx context.Context, audioPath, title string) (*domain.ExtractedRecipe, error)
}

// RecipeStore persists recipes and answers the dedup check.
type RecipeStore interface {
	Exists(ctx context.Context, videoID string) (bool, error)
	Save(ctx context.Context, rec *domain.ExtractedRecipe, chefID, videoID, videoURL string) (string, error)
}

// IngestCache is the fast-path dedup cache in front of the store.
type IngestCache interface {
	IsRecentlyIngested(ctx context.Context, videoID string) (bool, error)
	MarkIngested(ctx context.Context, videoID string, ttl time.Duration) error
}

// Config wires a Pipeline's collaborators and run parameters.
type Config struct {
	Source      VideoSource
	Transcripts TranscriptFetcher
	Audio       AudioFetcher
	Extractor   RecipeExtractor
	Store       RecipeStore
	Cache       IngestCache

	ChannelURL string
	ChefID     string
	VideoLimit int
	// VideoDelay is the fixed pause applied after every video, including
	// skips, to stay under external rate limits.
	VideoDelay time.Duration
	CacheTTL   time.Duration
}

// Pipeline drives one crawl run: list, dedup, extract, persist, tally.
// Videos are processed strictly sequentially in listing order.
type Pipeline struct {
	cfg     Config
	limiter *rate.Limiter
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func New(cfg Config, m *monitoring.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.VideoDelay), 1),
		metrics: m,
		logger:  logger,
	}
}

// Run processes every candidate video and returns the run summary. Only a
// listing failure aborts the run; per-video errors are classified and
// counted.
func (p *Pipeline) Run(ctx context.Context) (*domain.Summary, error) {
	videos, err := p.cfg.Source.List(ctx, p.cfg.ChannelURL, p.cfg.VideoLimit)
	if err != nil {
		return nil, fmt.Errorf("pipeline: listing channel videos: %w", err)
	}
	p.logger.Info("channel listed",
		zap.String("channel", p.cfg.ChannelURL), zap.Int("videos", len(videos)))

	summary := &domain.Summary{}
	for _, video := range videos {
		outcome := p.processVideo(ctx, video)
		summary.Record(outcome)
		p.metrics.IncVideo(string(outcome))
		p.logger.Info("video processed",
			zap.String("video_id", video.ID),
			zap.String("title", video.Title),
			zap.String("outcome", string(outcome)))

		if err := p.limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("pipeline: run interrupted: %w", err)
		}
	}
	return summary, nil
}

func (p *Pipeline) processVideo(ctx context.Context, video domain.Video) domain.Outcome {
	videoURL := youtube.WatchURL(video.ID)

	if dup, err := p.checkDuplicate(ctx, video.ID); err != nil {
		p.metrics.IncError("dedup_check")
		p.logger.Error("dedup check failed", zap.String("video_id", video.ID), zap.Error(err))
		return domain.OutcomeFailedSave
	} else if dup {
		return domain.OutcomeSkippedDuplicate
	}

	rec, outcome := p.extractRecipe(ctx, video)
	if outcome != "" {
		return outcome
	}

	if !rec.IsRecipe {
		return domain.OutcomeSkippedNotRecipe
	}

	recipeID, err := p.cfg.Store.Save(ctx, rec, p.cfg.ChefID, video.ID, videoURL)
	if err != nil {
		p.metrics.IncError("db_save")
		p.logger.Error("failed to save recipe", zap.String("video_id", video.ID), zap.Error(err))
		return domain.OutcomeFailedSave
	}

	if err := p.cfg.Cache.MarkIngested(ctx, video.ID, p.cfg.CacheTTL); err != nil {
		p.logger.Warn("failed to mark video in ingest cache",
			zap.String("video_id", video.ID), zap.Error(err))
	}

	p.logger.Info("recipe saved",
		zap.String("recipe_id", recipeID),
		zap.String("video_id", video.ID),
		zap.String("title", rec.Title))
	return domain.OutcomeSaved
}

// checkDuplicate consults the cache first, then the store's partial URL
// match. Cache errors degrade to the store check.
func (p *Pipeline) checkDuplicate(ctx context.Context, videoID string) (bool, error) {
	cached, err := p.cfg.Cache.IsRecentlyIngested(ctx, videoID)
	if err != nil {
		p.logger.Warn("ingest cache check failed", zap.String("video_id", videoID), zap.Error(err))
	} else if cached {
		return true, nil
	}

	exists, err := p.cfg.Store.Exists(ctx, videoID)
	if err != nil {
		return false, err
	}
	if exists {
		// Refresh the cache so repeat runs skip the database query.
		if err := p.cfg.Cache.MarkIngested(ctx, videoID, p.cfg.CacheTTL); err != nil {
			p.logger.Warn("failed to mark video in ingest cache",
				zap.String("video_id", videoID), zap.Error(err))
		}
	}
	return exists, nil
}

// extractRecipe runs the transcript-first, audio-fallback extraction. A
// non-empty outcome means the video's processing is already decided.
func (p *Pipeline) extractRecipe(ctx context.Context, video domain.Video) (*domain.ExtractedRecipe, domain.Outcome) {
	transcriptText, err := p.cfg.Transcripts.Fetch(ctx, video.ID)
	switch {
	case err == nil:
		p.logger.Info("analyzing transcript", zap.String("video_id", video.ID))
		rec, err := p.timedExtraction(func() (*domain.ExtractedRecipe, error) {
			return p.cfg.Extractor.FromText(ctx, transcriptText, video.Title)
		})
		if err != nil {
			p.metrics.IncError("extraction")
			p.logger.Error("text extraction failed", zap.String("video_id", video.ID), zap.Error(err))
			return nil, domain.OutcomeFailedExtraction
		}
		return rec, ""

	case errors.Is(err, transcript.ErrUnavailable):
		p.logger.Info("no transcript, switching to audio", zap.String("video_id", video.ID))
		audio, err := p.cfg.Audio.DownloadAudio(ctx, video.ID)
		if err != nil {
			p.metrics.IncError("audio_download")
			p.logger.Error("audio download failed", zap.String("video_id", video.ID), zap.Error(err))
			return nil, domain.OutcomeFailedAudio
		}

		rec, err := p.extractFromAudio(ctx, audio, video.Title)
		if err != nil {
			p.metrics.IncError("extraction")
			p.logger.Error("audio extraction failed", zap.String("video_id", video.ID), zap.Error(err))
			return nil, domain.OutcomeFailedExtraction
		}
		return rec, ""

	default:
		p.metrics.IncError("transcript_fetch")
		p.logger.Error("transcript fetch failed", zap.String("video_id", video.ID), zap.Error(err))
		return nil, domain.OutcomeFailedExtraction
	}
}

// extractFromAudio guarantees the temporary audio file is released whether
// extraction succeeds or not.
func (p *Pipeline) extractFromAudio(ctx context.Context, audio AudioArtifact, title string) (*domain.ExtractedRecipe, error) {
	defer func() {
		if err := audio.Release(); err != nil {
			p.logger.Warn("failed to remove temp audio", zap.String("path", audio.Path()), zap.Error(err))
		}
	}()
	return p.timedExtraction(func() (*domain.ExtractedRecipe, error) {
		return p.cfg.Extractor.FromAudio(ctx, audio.Path(), title)
	})
}

func (p *Pipeline) timedExtraction(extract func() (*domain.ExtractedRecipe, error)) (*domain.ExtractedRecipe, error) {
	start := time.Now()
	rec, err := extract()
	p.metrics.ObserveExtraction(time.Since(start))
	return rec, err
}
