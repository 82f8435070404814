package normalize

import (
	"context"
	"fmt"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Scope decides whose recipes a new import is compared against.
type Scope string

const (
	// ScopeUser compares only against the importing user's recipes.
	ScopeUser Scope = "user"
	// ScopeGlobal compares against every stored recipe.
	ScopeGlobal Scope = "global"
)

// ParseScope reads a configured scope, defaulting to ScopeUser.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeUser:
		return ScopeUser, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown dedup scope %q", s)
	}
}

// Deduplicator looks up existing recipes through the persistence
// collaborator.
type Deduplicator struct {
	store recipe.RecipeStore
	scope Scope
}

// NewDeduplicator builds a Deduplicator over store.
func NewDeduplicator(store recipe.RecipeStore, scope Scope) *Deduplicator {
	if scope == "" {
		scope = ScopeUser
	}
	return &Deduplicator{store: store, scope: scope}
}

// ScopeFor returns the key scope for a user's import.
func (d *Deduplicator) ScopeFor(userID string) string {
	if d.scope == ScopeGlobal {
		return ""
	}
	return userID
}

// ByURL checks for a recipe already imported from canonicalURL.
func (d *Deduplicator) ByURL(ctx context.Context, userID, canonicalURL string) (string, bool, error) {
	return d.Find(ctx, recipe.DuplicateKey{Scope: d.ScopeFor(userID), CanonicalURL: canonicalURL})
}

// Find matches key on canonical URL or fingerprint.
func (d *Deduplicator) Find(ctx context.Context, key recipe.DuplicateKey) (string, bool, error) {
	id, found, err := d.store.FindByDuplicateKey(ctx, key)
	if err != nil {
		return "", false, recipe.NewError(recipe.CodePersistenceFailed, "recipe lookup failed", err)
	}
	return id, found, nil
}
