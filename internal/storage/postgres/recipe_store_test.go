package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func newMockRecipeStore(t *testing.T) (*RecipeStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewRecipeStore(mock)
	require.NoError(t, err)
	return store, mock
}

func sampleRecipe() recipe.StoredRecipe {
	return recipe.StoredRecipe{
		ID:      "recipe-1",
		OwnerID: "user-1",
		Key: recipe.DuplicateKey{
			Scope:        "user-1",
			CanonicalURL: "https://www.allrecipes.com/recipe/1",
			Fingerprint:  "abc",
		},
		Recipe: recipe.CandidateRecipe{
			Title:        "Lasagna",
			Ingredients:  []recipe.Ingredient{{Name: "noodles", Raw: "1 box noodles", Quantity: 1, Unit: "box"}},
			Instructions: []string{"Bake."},
			Tier:         recipe.TierStructured,
		},
		Confidence: recipe.AggregatedConfidence{Score: 0.95, Tier: recipe.TierStructured},
		Nutrition:  recipe.NutritionPending,
		CreatedAt:  created,
	}
}

func TestSaveRecipe(t *testing.T) {
	t.Parallel()

	store, mock := newMockRecipeStore(t)
	r := sampleRecipe()
	mock.ExpectExec("INSERT INTO recipes").
		WithArgs(r.ID, r.OwnerID, r.Key.CanonicalURL, r.Key.Fingerprint, "Lasagna", pgxmock.AnyArg(),
			0.95, false, string(recipe.NutritionPending), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.Save(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "recipe-1", id)

	_, err = store.Save(context.Background(), recipe.StoredRecipe{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecipeUniqueViolationIsDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockRecipeStore(t)
	mock.ExpectExec("INSERT INTO recipes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "recipes_owner_url_unique"})

	_, err := store.Save(context.Background(), sampleRecipe())
	require.ErrorIs(t, err, recipe.ErrDuplicateRecipe)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByDuplicateKey(t *testing.T) {
	t.Parallel()

	store, mock := newMockRecipeStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id FROM recipes WHERE owner_id = $1 AND (canonical_url = $2 OR fingerprint = $3) ORDER BY created_at ASC LIMIT 1")).
		WithArgs("user-1", "https://a/r", "fp").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("recipe-1"))
	id, found, err := store.FindByDuplicateKey(ctx, recipe.DuplicateKey{Scope: "user-1", CanonicalURL: "https://a/r", Fingerprint: "fp"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "recipe-1", id)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM recipes WHERE (canonical_url = $1) ORDER BY created_at ASC LIMIT 1")).
		WithArgs("https://a/r").
		WillReturnError(pgx.ErrNoRows)
	_, found, err = store.FindByDuplicateKey(ctx, recipe.DuplicateKey{CanonicalURL: "https://a/r"})
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.FindByDuplicateKey(ctx, recipe.DuplicateKey{Scope: "user-1"})
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNutrition(t *testing.T) {
	t.Parallel()

	store, mock := newMockRecipeStore(t)
	facts := &recipe.NutritionFacts{Calories: 420, Protein: 30}
	raw, err := json.Marshal(facts)
	require.NoError(t, err)

	setSQL := regexp.QuoteMeta("UPDATE recipes SET nutrition_status = $1, nutrition = $2 WHERE id = $3")
	mock.ExpectExec(setSQL).
		WithArgs(string(recipe.NutritionAvailable), raw, "recipe-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.SetNutrition(context.Background(), "recipe-1", recipe.NutritionAvailable, facts))

	mock.ExpectExec(setSQL).
		WithArgs(string(recipe.NutritionUnavailable), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = store.SetNutrition(context.Background(), "missing", recipe.NutritionUnavailable, nil)
	require.ErrorIs(t, err, recipe.ErrRecipeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecipe(t *testing.T) {
	t.Parallel()

	store, mock := newMockRecipeStore(t)
	r := sampleRecipe()
	payload, err := json.Marshal(recipePayload{Recipe: r.Recipe, Confidence: r.Confidence})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes WHERE id = $1")).
		WithArgs("recipe-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "owner_id", "canonical_url", "fingerprint", "payload",
			"review_required", "nutrition_status", "nutrition", "created_at",
		}).AddRow(r.ID, r.OwnerID, r.Key.CanonicalURL, r.Key.Fingerprint, payload,
			false, string(recipe.NutritionAvailable), []byte(`{"calories":410,"protein_g":1,"carbs_g":2,"fat_g":3}`), created))

	got, facts, err := store.Get(context.Background(), "recipe-1")
	require.NoError(t, err)
	assert.Equal(t, "Lasagna", got.Recipe.Title)
	assert.Equal(t, r.Key, got.Key)
	assert.Equal(t, recipe.NutritionAvailable, got.Nutrition)
	require.NotNil(t, facts)
	assert.InDelta(t, 410, facts.Calories, 1e-9)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, _, err = store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, recipe.ErrRecipeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
