package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/recipe-crawler/internal/domain"
	"github.com/user/recipe-crawler/pkg/youtube"
)

// ErrChefNotFound means the configured target chef does not exist.
var ErrChefNotFound = errors.New("storage: chef not found")

// Chef is the owner row recipes are attached to.
type Chef struct {
	ID   string
	Name string
}

// RecipeStore handles interactions with the PostgreSQL database.
type RecipeStore struct {
	db *pgxpool.Pool
}

func NewRecipeStore(connStr string) (*RecipeStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &RecipeStore{db: db}, nil
}

func (s *RecipeStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *RecipeStore) Close() {
	s.db.Close()
}

// GetChef looks up a chef by id. Called once at startup to verify the
// configured target before any video work begins.
func (s *RecipeStore) GetChef(ctx context.Context, chefID string) (*Chef, error) {
	var chef Chef
	err := s.db.QueryRow(ctx,
		`SELECT id, name FROM chefs WHERE id = $1`, chefID,
	).Scan(&chef.ID, &chef.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChefNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: looking up chef %s: %w", chefID, err)
	}
	return &chef, nil
}

// Exists reports whether a video has already been ingested. The stored
// video_url may be a watch or a shorts URL, so match on the embedded id
// rather than the full URL.
func (s *RecipeStore) Exists(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM recipes WHERE video_url ILIKE '%' || $1 || '%')`, videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: checking for existing video %s: %w", videoID, err)
	}
	return exists, nil
}

// Save persists a recipe and its child rows. The recipe insert must complete
// first since the generated id keys every child row. Children are written in
// one batch per table. There is deliberately no surrounding transaction: if a
// child batch fails the parent row stays behind and the caller records a save
// failure for the video.
func (s *RecipeStore) Save(ctx context.Context, rec *domain.ExtractedRecipe, chefID, videoID, videoURL string) (string, error) {
	var recipeID string
	err := s.db.QueryRow(ctx,
		`INSERT INTO recipes (chef_id, title, image_url, time, calories, protein, fat, carbs, is_recommended, video_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		chefID, rec.Title, youtube.ThumbnailURL(videoID), rec.Time,
		rec.Nutrition.Calories, rec.Nutrition.Protein, rec.Nutrition.Fat, rec.Nutrition.Carbs,
		false, videoURL,
	).Scan(&recipeID)
	if err != nil {
		return "", fmt.Errorf("storage: inserting recipe: %w", err)
	}

	if len(rec.Ingredients) > 0 {
		batch := &pgx.Batch{}
		for _, ing := range rec.Ingredients {
			batch.Queue(
				`INSERT INTO ingredients (recipe_id, name, amount, purchase_link) VALUES ($1, $2, $3, $4)`,
				recipeID, ing.Name, ing.Amount, PurchaseLink(ing.Name),
			)
		}
		if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
			return recipeID, fmt.Errorf("storage: inserting ingredients for recipe %s: %w", recipeID, err)
		}
	}

	if len(rec.Steps) > 0 {
		batch := &pgx.Batch{}
		for _, step := range rec.Steps {
			batch.Queue(
				`INSERT INTO steps (recipe_id, step_order, description) VALUES ($1, $2, $3)`,
				recipeID, step.Order, step.Description,
			)
		}
		if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
			return recipeID, fmt.Errorf("storage: inserting steps for recipe %s: %w", recipeID, err)
		}
	}

	return recipeID, nil
}

// PurchaseLink builds the fixed ingredient search URL with the name
// percent-encoded as the query value.
func PurchaseLink(name string) string {
	return "https://www.coupang.com/np/search?component=&q=" + percentEncode(name) + "&channel=user"
}

// percentEncode is QueryEscape with spaces as %20 instead of '+'.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
