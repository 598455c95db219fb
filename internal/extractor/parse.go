package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/user/recipe-crawler/internal/domain"
)

// parseRecipeJSON decodes a raw model response into a validated recipe. The
// model is told to emit bare JSON but occasionally wraps it in code fences or
// returns a one-element array; both are tolerated. Anything else is rejected.
func parseRecipeJSON(raw string) (*domain.ExtractedRecipe, error) {
	cleaned := stripCodeFences(raw)

	if strings.HasPrefix(cleaned, "[") {
		var list []domain.ExtractedRecipe
		if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
			return nil, fmt.Errorf("extractor: decoding response array: %w", err)
		}
		if len(list) == 0 {
			return nil, errors.New("extractor: response array is empty")
		}
		rec := list[0]
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("extractor: invalid recipe payload: %w", err)
		}
		return &rec, nil
	}

	var rec domain.ExtractedRecipe
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return nil, fmt.Errorf("extractor: decoding response: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("extractor: invalid recipe payload: %w", err)
	}
	return &rec, nil
}

func stripCodeFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
