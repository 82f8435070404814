package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// RecipeStore persists recipes and answers duplicate lookups.
type RecipeStore struct {
	pool Pool
}

// NewRecipeStore wraps pool.
func NewRecipeStore(pool Pool) (*RecipeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecipeStore{pool: pool}, nil
}

type recipePayload struct {
	Recipe     recipe.CandidateRecipe      `json:"recipe"`
	Confidence recipe.AggregatedConfidence `json:"confidence"`
}

// Save inserts r and returns its ID. A second recipe for the same owner and
// canonical URL fails with recipe.ErrDuplicateRecipe.
func (s *RecipeStore) Save(ctx context.Context, r recipe.StoredRecipe) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("recipe id is required")
	}
	payload, err := json.Marshal(recipePayload{Recipe: r.Recipe, Confidence: r.Confidence})
	if err != nil {
		return "", fmt.Errorf("marshal recipe: %w", err)
	}
	query, args, err := psql.Insert("recipes").
		Columns("id", "owner_id", "canonical_url", "fingerprint", "title", "payload",
			"confidence", "review_required", "nutrition_status", "created_at").
		Values(r.ID, r.OwnerID, r.Key.CanonicalURL, r.Key.Fingerprint, r.Recipe.Title, payload,
			r.Confidence.Score, r.ReviewRequired, string(r.Nutrition), r.CreatedAt).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert recipe: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("insert recipe: %w", recipe.ErrDuplicateRecipe)
		}
		return "", fmt.Errorf("insert recipe: %w", err)
	}
	return r.ID, nil
}

// FindByDuplicateKey returns the oldest recipe in key.Scope whose canonical
// URL or fingerprint matches. An empty scope searches every owner.
func (s *RecipeStore) FindByDuplicateKey(ctx context.Context, key recipe.DuplicateKey) (string, bool, error) {
	match := sq.Or{}
	if key.CanonicalURL != "" {
		match = append(match, sq.Eq{"canonical_url": key.CanonicalURL})
	}
	if key.Fingerprint != "" {
		match = append(match, sq.Eq{"fingerprint": key.Fingerprint})
	}
	if len(match) == 0 {
		return "", false, nil
	}
	builder := psql.Select("id").From("recipes")
	if key.Scope != "" {
		builder = builder.Where(sq.Eq{"owner_id": key.Scope})
	}
	query, args, err := builder.Where(match).OrderBy("created_at ASC").Limit(1).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build duplicate lookup: %w", err)
	}
	var id string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("duplicate lookup: %w", err)
	}
	return id, true, nil
}

// SetNutrition records the nutrition outcome for a recipe.
func (s *RecipeStore) SetNutrition(ctx context.Context, recipeID string, status recipe.NutritionStatus, facts *recipe.NutritionFacts) error {
	var raw []byte
	if facts != nil {
		var err error
		if raw, err = json.Marshal(facts); err != nil {
			return fmt.Errorf("marshal nutrition: %w", err)
		}
	}
	query, args, err := psql.Update("recipes").
		Set("nutrition_status", string(status)).
		Set("nutrition", raw).
		Where(sq.Eq{"id": recipeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set nutrition: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set nutrition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recipe.ErrRecipeNotFound
	}
	return nil
}

// Get loads a stored recipe and its nutrition facts, if computed.
func (s *RecipeStore) Get(ctx context.Context, recipeID string) (recipe.StoredRecipe, *recipe.NutritionFacts, error) {
	query, args, err := psql.Select("id", "owner_id", "canonical_url", "fingerprint", "payload",
		"review_required", "nutrition_status", "nutrition", "created_at").
		From("recipes").
		Where(sq.Eq{"id": recipeID}).
		ToSql()
	if err != nil {
		return recipe.StoredRecipe{}, nil, fmt.Errorf("build get recipe: %w", err)
	}
	var (
		r                 recipe.StoredRecipe
		payload, rawFacts []byte
		status            string
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&r.ID, &r.OwnerID, &r.Key.CanonicalURL, &r.Key.Fingerprint, &payload,
		&r.ReviewRequired, &status, &rawFacts, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.StoredRecipe{}, nil, recipe.ErrRecipeNotFound
	}
	if err != nil {
		return recipe.StoredRecipe{}, nil, fmt.Errorf("get recipe: %w", err)
	}
	var decoded recipePayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return recipe.StoredRecipe{}, nil, fmt.Errorf("decode recipe payload: %w", err)
	}
	r.Recipe = decoded.Recipe
	r.Confidence = decoded.Confidence
	r.Key.Scope = r.OwnerID
	r.Nutrition = recipe.NutritionStatus(status)

	var facts *recipe.NutritionFacts
	if len(rawFacts) > 0 && string(rawFacts) != "null" {
		facts = &recipe.NutritionFacts{}
		if err := json.Unmarshal(rawFacts, facts); err != nil {
			return recipe.StoredRecipe{}, nil, fmt.Errorf("decode nutrition: %w", err)
		}
	}
	return r, facts, nil
}
