package nutrition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func TestComputePostsIngredients(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req computeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4, req.Servings)
		assert.Equal(t, []ingredientRequest{{Name: "flour", Quantity: 2, Unit: "cup"}}, req.Ingredients)
		_, _ = w.Write([]byte(`{"calories":227.5,"protein_g":6.4,"carbs_g":47.7,"fat_g":0.6}`))
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, APIKey: "secret"}, srv.Client())
	require.NoError(t, err)
	facts, err := c.Compute(context.Background(), []recipe.Ingredient{{Name: "flour", Quantity: 2, Unit: "cup"}}, 4)
	require.NoError(t, err)
	assert.InDelta(t, 227.5, facts.Calories, 1e-9)
}

func TestComputeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{name: "malformed", handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{")) }},
		{name: "slow", handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c, err := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, nil)
			require.NoError(t, err)
			_, err = c.Compute(context.Background(), nil, 0)
			require.Equal(t, recipe.CodeNutritionCalculationFailed, recipe.CodeOf(err))
		})
	}
}

func TestDisabledAndConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)

	_, err = Disabled{}.Compute(context.Background(), nil, 1)
	require.ErrorIs(t, err, ErrDisabled)
}
