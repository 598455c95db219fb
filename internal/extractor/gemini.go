package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/user/recipe-crawler/internal/domain"
)

const (
	// maxTranscriptChars bounds the text submitted per request to keep cost
	// and latency predictable on very long videos.
	maxTranscriptChars = 15000

	pollInterval    = time.Second
	maxPollAttempts = 60
)

// Extractor derives structured recipes from transcripts or audio through the
// Gemini API.
type Extractor struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func New(client *genai.Client, model string, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: client,
		model:  model,
		logger: logger,
	}
}

// FromText extracts a recipe from a video transcript. Service and parse
// failures surface as errors, never panics; the caller classifies them as
// per-video extraction failures.
func (e *Extractor) FromText(ctx context.Context, transcript, title string) (*domain.ExtractedRecipe, error) {
	prompt := textPrompt(title, truncate(transcript, maxTranscriptChars))

	res, err := e.client.Models.GenerateContent(ctx, e.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: generating content from text: %w", err)
	}

	return decodeResponse(res)
}

// FromAudio uploads a local audio file, waits for the remote artifact to
// become usable, runs generation against it, and deletes the remote artifact
// regardless of outcome.
func (e *Extractor) FromAudio(ctx context.Context, audioPath, title string) (*domain.ExtractedRecipe, error) {
	file, err := e.client.Files.UploadFromPath(ctx, audioPath, &genai.UploadFileConfig{
		MIMEType: "audio/mpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: uploading audio: %w", err)
	}
	defer func() {
		if _, err := e.client.Files.Delete(ctx, file.Name, nil); err != nil {
			e.logger.Warn("failed to delete uploaded audio file",
				zap.String("file", file.Name), zap.Error(err))
		}
	}()

	ready, err := e.awaitFileActive(ctx, file)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromURI(ready.URI, ready.MIMEType),
		genai.NewPartFromText(audioPrompt(title)),
	}
	res, err := e.client.Models.GenerateContent(ctx, e.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: generating content from audio: %w", err)
	}

	return decodeResponse(res)
}

// awaitFileActive polls the uploaded file until it leaves the processing
// state. The poll is bounded so a remote artifact stuck in processing cannot
// hang the run.
func (e *Extractor) awaitFileActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for attempt := 0; file.State == genai.FileStateProcessing; attempt++ {
		if attempt >= maxPollAttempts {
			return nil, fmt.Errorf("extractor: audio file %s still processing after %d polls", file.Name, maxPollAttempts)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		f, err := e.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("extractor: polling audio file: %w", err)
		}
		file = f
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("extractor: remote processing failed for audio file %s", file.Name)
	}
	return file, nil
}

func decodeResponse(res *genai.GenerateContentResponse) (*domain.ExtractedRecipe, error) {
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("extractor: empty model response")
	}
	text := res.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, errors.New("extractor: model response has no text part")
	}
	return parseRecipeJSON(text)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
