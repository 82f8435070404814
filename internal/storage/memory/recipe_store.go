package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

type storedEntry struct {
	recipe recipe.StoredRecipe
	facts  *recipe.NutritionFacts
}

// RecipeStore keeps recipes and their duplicate keys in memory.
type RecipeStore struct {
	mu      sync.RWMutex
	recipes map[string]storedEntry
	order   []string
}

// NewRecipeStore constructs a RecipeStore.
func NewRecipeStore() *RecipeStore {
	return &RecipeStore{recipes: make(map[string]storedEntry)}
}

// Save stores r under its ID. Like the Postgres store it allows one recipe
// per owner and canonical URL.
func (s *RecipeStore) Save(_ context.Context, r recipe.StoredRecipe) (string, error) {
	if r.ID == "" {
		return "", errors.New("recipe id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Key.CanonicalURL != "" {
		for id, entry := range s.recipes {
			if id != r.ID && entry.recipe.OwnerID == r.OwnerID && entry.recipe.Key.CanonicalURL == r.Key.CanonicalURL {
				return "", recipe.ErrDuplicateRecipe
			}
		}
	}
	if _, exists := s.recipes[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.recipes[r.ID] = storedEntry{recipe: r}
	return r.ID, nil
}

// FindByDuplicateKey returns the oldest recipe in key.Scope matching the
// canonical URL or the fingerprint. An empty scope searches every owner.
func (s *RecipeStore) FindByDuplicateKey(_ context.Context, key recipe.DuplicateKey) (string, bool, error) {
	if key.CanonicalURL == "" && key.Fingerprint == "" {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		r := s.recipes[id].recipe
		if key.Scope != "" && r.OwnerID != key.Scope {
			continue
		}
		if key.CanonicalURL != "" && r.Key.CanonicalURL == key.CanonicalURL {
			return id, true, nil
		}
		if key.Fingerprint != "" && r.Key.Fingerprint == key.Fingerprint {
			return id, true, nil
		}
	}
	return "", false, nil
}

// SetNutrition records the nutrition outcome for a recipe.
func (s *RecipeStore) SetNutrition(_ context.Context, recipeID string, status recipe.NutritionStatus, facts *recipe.NutritionFacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.recipes[recipeID]
	if !ok {
		return recipe.ErrRecipeNotFound
	}
	entry.recipe.Nutrition = status
	entry.facts = nil
	if facts != nil {
		f := *facts
		entry.facts = &f
	}
	s.recipes[recipeID] = entry
	return nil
}

// Get returns a stored recipe and its nutrition facts, if computed.
func (s *RecipeStore) Get(_ context.Context, recipeID string) (recipe.StoredRecipe, *recipe.NutritionFacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.recipes[recipeID]
	if !ok {
		return recipe.StoredRecipe{}, nil, recipe.ErrRecipeNotFound
	}
	var facts *recipe.NutritionFacts
	if entry.facts != nil {
		f := *entry.facts
		facts = &f
	}
	return entry.recipe, facts, nil
}

// Len reports how many recipes are stored.
func (s *RecipeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipes)
}
