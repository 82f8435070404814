package recipe

import (
	"context"
	"io"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates job and recipe identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// JobStore persists import jobs and enforces the lifecycle.
type JobStore interface {
	CreateJob(ctx context.Context, job ImportJob) error
	GetJob(ctx context.Context, jobID string) (ImportJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]ImportJob, error)
	// Transition moves the job to status when legal and applies mutate to
	// the stored copy atomically. It returns ErrInvalidTransition otherwise.
	Transition(ctx context.Context, jobID string, to JobStatus, mutate func(*ImportJob)) (ImportJob, error)
	// RecordAttempt bumps the attempt counter of a processing job.
	RecordAttempt(ctx context.Context, jobID string) (int, error)
}

// RecipeStore is the persistence collaborator for recipes and the dedup index.
type RecipeStore interface {
	Save(ctx context.Context, recipe StoredRecipe) (string, error)
	// FindByDuplicateKey matches on canonical URL or fingerprint within scope.
	FindByDuplicateKey(ctx context.Context, key DuplicateKey) (string, bool, error)
	SetNutrition(ctx context.Context, recipeID string, status NutritionStatus, facts *NutritionFacts) error
}

// NutritionCalculator is the external nutrition engine.
type NutritionCalculator interface {
	Compute(ctx context.Context, ingredients []Ingredient, servings int) (NutritionFacts, error)
}

// Renderer executes page scripts in a headless browser.
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (RenderedPage, error)
}

// AIExtractor is the external AI extraction capability.
type AIExtractor interface {
	Extract(ctx context.Context, text string, timeout time.Duration) (StructuredGuess, error)
}

// Notifier delivers terminal job events. Failures never affect job state.
type Notifier interface {
	Notify(ctx context.Context, event JobEvent) error
}

// BlobStore persists review snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Queue hands job ids to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// QueueItem is the queued reference to a pending job.
type QueueItem struct {
	JobID string
}
