package domain

import (
	"errors"
	"fmt"
)

// Video is a single entry from a channel listing.
type Video struct {
	ID    string
	Title string
}

// RecipeIngredient is one ingredient line of an extracted recipe.
type RecipeIngredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// RecipeStep is one instruction of an extracted recipe. Order is assigned by
// the AI service and persisted verbatim as the step's ordering key.
type RecipeStep struct {
	Order       int    `json:"order"`
	Description string `json:"description"`
}

// Nutrition holds the denormalized nutrition estimate for a recipe.
type Nutrition struct {
	Calories int    `json:"calories"`
	Protein  string `json:"protein"`
	Fat      string `json:"fat"`
	Carbs    string `json:"carbs"`
}

// ExtractedRecipe is the structured payload decoded from an AI response.
// When IsRecipe is false the remaining fields carry no meaning and the
// record must not be persisted.
type ExtractedRecipe struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Ingredients []RecipeIngredient `json:"ingredients"`
	Steps       []RecipeStep       `json:"steps"`
	Time        string             `json:"time"`
	Nutrition   Nutrition          `json:"nutrition"`
	IsRecipe    bool               `json:"is_recipe"`
}

// Validate checks the schema constraints of a decoded recipe. A payload that
// declares itself not-a-recipe is always valid since its fields are ignored.
func (r *ExtractedRecipe) Validate() error {
	if !r.IsRecipe {
		return nil
	}
	if r.Title == "" {
		return errors.New("recipe title is empty")
	}
	for i, step := range r.Steps {
		if step.Order <= 0 {
			return fmt.Errorf("step %d has non-positive order %d", i, step.Order)
		}
	}
	return nil
}

// Outcome is the terminal classification of one processed video.
type Outcome string

const (
	OutcomeSaved            Outcome = "saved"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeSkippedNotRecipe Outcome = "skipped_not_recipe"
	OutcomeFailedAudio      Outcome = "failed_audio_download"
	OutcomeFailedExtraction Outcome = "failed_extraction"
	OutcomeFailedSave       Outcome = "failed_save"
)

// Summary accumulates per-video outcomes over a run.
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
}

// Record tallies a single outcome into the summary.
func (s *Summary) Record(o Outcome) {
	switch o {
	case OutcomeSaved:
		s.Saved++
	case OutcomeSkippedDuplicate, OutcomeSkippedNotRecipe:
		s.Skipped++
	case OutcomeFailedAudio, OutcomeFailedExtraction, OutcomeFailedSave:
		s.Failed++
	}
}
