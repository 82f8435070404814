// Package recipe defines the domain types, error taxonomy, and collaborator
// interfaces shared by the import pipeline.
package recipe

import "time"

// JobStatus captures the lifecycle state of an import job.
type JobStatus string

const (
	// JobStatusPending means the job is accepted but not yet picked up.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing means a worker owns the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted is terminal and references a recipe.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed is terminal and carries an error code.
	JobStatusFailed JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// Pending may fail directly only through cancellation.
func CanTransition(from, to JobStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFrom returns every state that may legally move to the target.
func SourcesFrom(to JobStatus) []JobStatus {
	var out []JobStatus
	for from, targets := range allowedTransitions {
		for _, t := range targets {
			if t == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// SourceKind distinguishes the two submission shapes.
type SourceKind string

const (
	// SourceURL is a directly supplied recipe URL.
	SourceURL SourceKind = "url"
	// SourceText is social-media post text.
	SourceText SourceKind = "text"
)

// Source is the raw signal a job was created from.
type Source struct {
	Kind   SourceKind `json:"kind"`
	Value  string     `json:"value"`
	BioURL string     `json:"bio_url,omitempty"`
}

// ImportJob is the unit of work and its audit trail. Jobs are never deleted.
type ImportJob struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Source         Source                `json:"source"`
	Status         JobStatus             `json:"status"`
	Attempts       int                   `json:"attempts"`
	ErrorCode      ErrorCode             `json:"error_code,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	Notice         ErrorCode             `json:"notice,omitempty"`
	RecipeID       string                `json:"recipe_id,omitempty"`
	Duplicate      bool                  `json:"duplicate"`
	ReviewRequired bool                  `json:"review_required"`
	NeedsBioURL    bool                  `json:"needs_bio_url"`
	Confidence     *AggregatedConfidence `json:"confidence,omitempty"`
	CanonicalURL   string                `json:"canonical_url,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}

// LinkKind tells how a link was detected.
type LinkKind string

const (
	// LinkExplicitURL is a URL present in the text.
	LinkExplicitURL LinkKind = "explicit_url"
	// LinkBioPhrase is a "link in bio" style phrase with no URL.
	LinkBioPhrase LinkKind = "bio_phrase"
)

// DetectedLink is one candidate link found in the input.
type DetectedLink struct {
	JobID      string   `json:"job_id,omitempty"`
	Span       string   `json:"span"`
	URL        string   `json:"url,omitempty"`
	Confidence float64  `json:"confidence"`
	Kind       LinkKind `json:"kind"`
	Position   int      `json:"position"`
}

// Classification is the registry verdict for a domain.
type Classification string

const (
	// DomainWhitelisted is a registered recipe domain.
	DomainWhitelisted Classification = "whitelisted"
	// DomainUnknown is not in the registry.
	DomainUnknown Classification = "unknown"
	// DomainBlocked must never be fetched.
	DomainBlocked Classification = "blocked"
)

// DomainVerdict is the classifier output for one URL.
type DomainVerdict struct {
	URL            string         `json:"url"`
	Domain         string         `json:"domain"`
	Classification Classification `json:"classification"`
	Weight         float64        `json:"weight"`
	Ceiling        float64        `json:"ceiling"`
	RequiresRender bool           `json:"requires_render"`
	Adapter        *AdapterRules  `json:"-"`
}

// AdapterRules are per-domain CSS selectors for the site-adapter tier.
type AdapterRules struct {
	Title        string `yaml:"title" json:"title"`
	Description  string `yaml:"description" json:"description,omitempty"`
	Ingredients  string `yaml:"ingredients" json:"ingredients"`
	Instructions string `yaml:"instructions" json:"instructions"`
	Servings     string `yaml:"servings" json:"servings,omitempty"`
	PrepTime     string `yaml:"prep_time" json:"prep_time,omitempty"`
	CookTime     string `yaml:"cook_time" json:"cook_time,omitempty"`
	TotalTime    string `yaml:"total_time" json:"total_time,omitempty"`
}

// BreakerState is the circuit state of a domain.
type BreakerState string

const (
	// BreakerClosed admits requests.
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects requests until the cooldown elapses.
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen admits a single trial request.
	BreakerHalfOpen BreakerState = "half-open"
)

// DomainHealth is a point-in-time snapshot of a domain's fetch health.
type DomainHealth struct {
	Domain              string       `json:"domain"`
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailure         time.Time    `json:"last_failure,omitzero"`
	NextRetryAt         time.Time    `json:"next_retry_at,omitzero"`
	Cooldown            string       `json:"cooldown,omitempty"`
	Tokens              float64      `json:"tokens"`
}

// CrawlResult is the raw fetched document.
type CrawlResult struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url"`
	Body       []byte    `json:"-"`
	StatusCode int       `json:"status_code"`
	FetchedAt  time.Time `json:"fetched_at"`
	FromCache  bool      `json:"from_cache"`
	Rendered   bool      `json:"rendered"`
}

// Tier names an extraction strategy.
type Tier string

const (
	// TierStructured parses JSON-LD or microdata.
	TierStructured Tier = "structured"
	// TierAdapter applies per-domain selectors.
	TierAdapter Tier = "adapter"
	// TierAI delegates to an AI extraction capability.
	TierAI Tier = "ai"
)

// Ingredient is one parsed ingredient line.
type Ingredient struct {
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Name     string  `json:"name"`
	Note     string  `json:"note,omitempty"`
	Raw      string  `json:"raw,omitempty"`
}

// Field confidence keys.
const (
	FieldTitle        = "title"
	FieldIngredients  = "ingredients"
	FieldInstructions = "instructions"
	FieldTimes        = "times"
	FieldServings     = "servings"
)

// CandidateRecipe is a tier's extraction output.
type CandidateRecipe struct {
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Ingredients     []Ingredient       `json:"ingredients"`
	Instructions    []string           `json:"instructions"`
	PrepTime        time.Duration      `json:"prep_time,omitempty"`
	CookTime        time.Duration      `json:"cook_time,omitempty"`
	TotalTime       time.Duration      `json:"total_time,omitempty"`
	Servings        int                `json:"servings,omitempty"`
	Cuisine         string             `json:"cuisine,omitempty"`
	Difficulty      string             `json:"difficulty,omitempty"`
	Tags            []string           `json:"tags,omitempty"`
	SourceURL       string             `json:"source_url"`
	Tier            Tier               `json:"tier"`
	FieldConfidence map[string]float64 `json:"field_confidence"`
	Confidence      float64            `json:"confidence"`
}

// ConfidenceBreakdown lists the component scores that fed the aggregate.
type ConfidenceBreakdown struct {
	Detector   float64 `json:"detector"`
	Domain     float64 `json:"domain"`
	Extraction float64 `json:"extraction"`
}

// AggregatedConfidence is the final trust score of an import.
type AggregatedConfidence struct {
	Score     float64             `json:"score"`
	Tier      Tier                `json:"tier"`
	Breakdown ConfidenceBreakdown `json:"breakdown"`
}

// DuplicateKey identifies a recipe for deduplication.
type DuplicateKey struct {
	Scope        string `json:"scope,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}

// NutritionStatus tracks the asynchronous nutrition computation.
type NutritionStatus string

const (
	// NutritionPending is set when the recipe is first stored.
	NutritionPending NutritionStatus = "pending"
	// NutritionAvailable means facts were computed.
	NutritionAvailable NutritionStatus = "available"
	// NutritionUnavailable means computation failed.
	NutritionUnavailable NutritionStatus = "unavailable"
)

// NutritionFacts is the per-serving output of the nutrition engine.
type NutritionFacts struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
	Fiber    float64 `json:"fiber_g,omitempty"`
}

// StoredRecipe is what the pipeline hands to the persistence collaborator.
type StoredRecipe struct {
	ID             string               `json:"id"`
	OwnerID        string               `json:"owner_id"`
	Key            DuplicateKey         `json:"key"`
	Recipe         CandidateRecipe      `json:"recipe"`
	Confidence     AggregatedConfidence `json:"confidence"`
	ReviewRequired bool                 `json:"review_required"`
	Nutrition      NutritionStatus      `json:"nutrition_status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// StructuredGuess is the raw output of the AI extraction capability.
type StructuredGuess struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	PrepMinutes  int          `json:"prep_time_minutes"`
	CookMinutes  int          `json:"cook_time_minutes"`
	Servings     int          `json:"servings"`
	Difficulty   string       `json:"difficulty_level"`
	Cuisine      string       `json:"cuisine_type"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	Tags         []string     `json:"tags"`
	Confidence   float64      `json:"confidence_score"`
}

// RenderedPage is the headless renderer output.
type RenderedPage struct {
	URL        string
	StatusCode int
	HTML       string
}

// JobEvent is emitted on every terminal transition.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id"`
	Status     JobStatus `json:"status"`
	RecipeID   string    `json:"recipe_id,omitempty"`
	ErrorCode  ErrorCode `json:"error_code,omitempty"`
	Notice     ErrorCode `json:"notice,omitempty"`
	Duplicate  bool      `json:"duplicate"`
	Review     bool      `json:"review_required"`
	OccurredAt time.Time `json:"occurred_at"`
}
