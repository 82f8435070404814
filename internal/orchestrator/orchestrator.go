// Package orchestrator drives import jobs through the pipeline. A job moves
// pending -> processing -> completed|failed; inside processing each attempt
// runs link resolution, domain classification, fetch, extraction, confidence
// aggregation, normalization, deduplication and persistence in that order.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/clock/system"
	"github.com/JakeFAU/recipe-importer/internal/confidence"
	"github.com/JakeFAU/recipe-importer/internal/id/uuid"
	"github.com/JakeFAU/recipe-importer/internal/linkdetect"
	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/normalize"
	"github.com/JakeFAU/recipe-importer/internal/nutrition"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// ErrQueueFull is returned by submissions the worker queue did not accept.
// The job is failed before the error is returned.
var ErrQueueFull = errors.New("import queue is full")

// ErrInvalidSubmission rejects submissions without a user or a source.
var ErrInvalidSubmission = errors.New("invalid submission")

var errCancelled = &recipe.ImportError{
	Code:    recipe.CodeCancelled,
	Message: "the import was cancelled",
}

var errShutdown = &recipe.ImportError{
	Code:    recipe.CodeCancelled,
	Message: "the importer stopped before the import finished",
}

// Config tunes job execution.
type Config struct {
	Retry RetryPolicy
	// JobTimeout bounds a single attempt.
	JobTimeout  time.Duration
	AutoSaveMin float64
	// BioURLConfidence is the detector score given to a caller-supplied bio
	// URL that resolved a link-in-bio phrase.
	BioURLConfidence     float64
	DedupScope           normalize.Scope
	NutritionConcurrency int
	EnqueueTimeout       time.Duration
	// SideEffectTimeout bounds terminal writes, notifications, snapshots
	// and nutrition calls, which outlive the job context.
	SideEffectTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = DefaultRetryPolicy().MaxDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	if c.AutoSaveMin <= 0 {
		c.AutoSaveMin = 0.75
	}
	if c.BioURLConfidence <= 0 {
		c.BioURLConfidence = 0.5
	}
	if c.NutritionConcurrency <= 0 {
		c.NutritionConcurrency = 2
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = time.Second
	}
	if c.SideEffectTimeout <= 0 {
		c.SideEffectTimeout = 15 * time.Second
	}
}

// LinkDetector finds candidate links in submitted text.
type LinkDetector interface {
	Detect(text string) []recipe.DetectedLink
}

// Classifier maps a URL to its domain verdict.
type Classifier interface {
	Classify(rawURL string) (recipe.DomainVerdict, error)
}

// PageFetcher retrieves the page behind a verdict.
type PageFetcher interface {
	Fetch(ctx context.Context, verdict recipe.DomainVerdict) (recipe.CrawlResult, error)
}

// RecipeExtractor turns a page into a candidate recipe.
type RecipeExtractor interface {
	Run(ctx context.Context, page recipe.CrawlResult, verdict recipe.DomainVerdict) (recipe.CandidateRecipe, error)
}

// Scorer aggregates component scores into the final confidence.
type Scorer interface {
	Aggregate(detector float64, verdict recipe.DomainVerdict, cand recipe.CandidateRecipe) recipe.AggregatedConfidence
}

// Deps are the orchestrator's collaborators. Nutrition, Notifier and Blobs
// are optional.
type Deps struct {
	Jobs       recipe.JobStore
	Recipes    recipe.RecipeStore
	Queue      recipe.Queue
	Detector   LinkDetector
	Classifier Classifier
	Fetcher    PageFetcher
	Extractor  RecipeExtractor
	Scorer     Scorer
	Nutrition  recipe.NutritionCalculator
	Notifier   recipe.Notifier
	Blobs      recipe.BlobStore
	IDs        recipe.IDGenerator
	Clock      recipe.Clock
	Logger     *zap.Logger
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator owns job lifecycles.
type Orchestrator struct {
	cfg        Config
	jobs       recipe.JobStore
	recipes    recipe.RecipeStore
	queue      recipe.Queue
	detector   LinkDetector
	classifier Classifier
	fetcher    PageFetcher
	extractor  RecipeExtractor
	scorer     Scorer
	dedup      *normalize.Deduplicator
	nutrition  recipe.NutritionCalculator
	notifier   recipe.Notifier
	blobs      recipe.BlobStore
	ids        recipe.IDGenerator
	clock      recipe.Clock
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	nutritionSlots chan struct{}
	background     sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
}

// New validates deps and builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Jobs == nil:
		return nil, errors.New("job store is required")
	case deps.Recipes == nil:
		return nil, errors.New("recipe store is required")
	case deps.Queue == nil:
		return nil, errors.New("queue is required")
	case deps.Detector == nil:
		return nil, errors.New("link detector is required")
	case deps.Classifier == nil:
		return nil, errors.New("domain classifier is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Scorer == nil:
		return nil, errors.New("confidence scorer is required")
	}
	cfg.withDefaults()
	o := &Orchestrator{
		cfg:            cfg,
		jobs:           deps.Jobs,
		recipes:        deps.Recipes,
		queue:          deps.Queue,
		detector:       deps.Detector,
		classifier:     deps.Classifier,
		fetcher:        deps.Fetcher,
		extractor:      deps.Extractor,
		scorer:         deps.Scorer,
		dedup:          normalize.NewDeduplicator(deps.Recipes, cfg.DedupScope),
		nutrition:      deps.Nutrition,
		notifier:       deps.Notifier,
		blobs:          deps.Blobs,
		ids:            deps.IDs,
		clock:          deps.Clock,
		logger:         deps.Logger,
		sleep:          deps.Sleep,
		nutritionSlots: make(chan struct{}, cfg.NutritionConcurrency),
		running:        make(map[string]context.CancelCauseFunc),
	}
	if o.ids == nil {
		o.ids = uuid.New()
	}
	if o.clock == nil {
		o.clock = system.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	o.logger = o.logger.Named("orchestrator")
	return o, nil
}

// SubmitURL accepts a direct recipe URL.
func (o *Orchestrator) SubmitURL(ctx context.Context, userID, rawURL string) (recipe.ImportJob, error) {
	return o.submit(ctx, userID, recipe.Source{Kind: recipe.SourceURL, Value: strings.TrimSpace(rawURL)})
}

// SubmitText accepts social-media post text with an optional bio URL for
// posts that only say the link is in the author's bio.
func (o *Orchestrator) SubmitText(ctx context.Context, userID, text, bioURL string) (recipe.ImportJob, error) {
	return o.submit(ctx, userID, recipe.Source{
		Kind:   recipe.SourceText,
		Value:  text,
		BioURL: strings.TrimSpace(bioURL),
	})
}

func (o *Orchestrator) submit(ctx context.Context, userID string, src recipe.Source) (recipe.ImportJob, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(src.Value) == "" {
		return recipe.ImportJob{}, ErrInvalidSubmission
	}
	jobID, err := o.ids.NewID()
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("new job id: %w", err)
	}
	job := recipe.ImportJob{
		ID:        jobID,
		UserID:    userID,
		Source:    src,
		Status:    recipe.JobStatusPending,
		CreatedAt: o.clock.Now(),
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return recipe.ImportJob{}, fmt.Errorf("create job: %w", err)
	}

	enqCtx, cancel := context.WithTimeout(ctx, o.cfg.EnqueueTimeout)
	defer cancel()
	if err := o.queue.Enqueue(enqCtx, recipe.QueueItem{JobID: jobID}); err != nil {
		o.logger.Warn("job not queued",
			zap.String("job_id", jobID),
			zap.Error(err))
		failed, ferr := o.fail(ctx, jobID, recipe.NewError(recipe.CodeInternal, "the importer is busy, try again later", err), attemptState{})
		if ferr != nil {
			return job, fmt.Errorf("%w: %w", ErrQueueFull, errors.Join(err, ferr))
		}
		return failed, fmt.Errorf("%w: %w", ErrQueueFull, err)
	}
	o.logger.Info("job accepted",
		zap.String("job_id", jobID),
		zap.String("user_id", userID),
		zap.String("kind", string(src.Kind)))
	return job, nil
}

// Status returns the current view of a job.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (recipe.ImportJob, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns a user's jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, userID string, limit int) ([]recipe.ImportJob, error) {
	jobs, err := o.jobs.ListJobs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Cancel fails a non-terminal job owned by userID with Cancelled and aborts
// the attempt running it, if any.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string) (recipe.ImportJob, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("get job: %w", err)
	}
	if job.UserID != userID {
		return recipe.ImportJob{}, recipe.ErrForbidden
	}
	if job.Status.Terminal() {
		return job, recipe.ErrInvalidTransition
	}
	cancelled, err := o.fail(ctx, jobID, errCancelled, attemptState{})
	o.interrupt(jobID)
	if errors.Is(err, recipe.ErrInvalidTransition) {
		current, gerr := o.jobs.GetJob(ctx, jobID)
		if gerr != nil {
			return recipe.ImportJob{}, fmt.Errorf("get job: %w", gerr)
		}
		return current, recipe.ErrInvalidTransition
	}
	if err != nil {
		return recipe.ImportJob{}, err
	}
	o.logger.Info("job cancelled", zap.String("job_id", jobID))
	return cancelled, nil
}

// Close waits for in-flight notifications and nutrition computations.
func (o *Orchestrator) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for background work: %w", ctx.Err())
	}
}

// attemptState carries what earlier stages learned into a failure record.
type attemptState struct {
	canonicalURL string
	needsBioURL  bool
}

type outcome struct {
	recipeID   string
	duplicate  bool
	review     bool
	confidence *recipe.AggregatedConfidence
	page       *recipe.CrawlResult
	stored     *recipe.StoredRecipe
}

// Process implements worker.Handler. It owns retries and the terminal
// transition of the job.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	o.track(jobID, cancel)
	defer o.untrack(jobID)

	startedAt := o.clock.Now()
	job, err := o.jobs.Transition(runCtx, jobID, recipe.JobStatusProcessing, func(j *recipe.ImportJob) {
		j.StartedAt = &startedAt
	})
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidTransition) {
			o.logger.Debug("job no longer pending", zap.String("job_id", jobID))
			return nil
		}
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := o.logger.With(zap.String("job_id", job.ID), zap.String("user_id", job.UserID))
	var st attemptState
	for {
		attempt, err := o.jobs.RecordAttempt(runCtx, job.ID)
		if err != nil {
			if runCtx.Err() != nil {
				return o.abort(ctx, runCtx, job.ID, st, logger)
			}
			if errors.Is(err, recipe.ErrInvalidTransition) {
				logger.Debug("job left processing before the attempt started")
				return nil
			}
			return o.finalize(ctx, job.ID, recipe.NewError(recipe.CodePersistenceFailed, "the job could not be updated", err), st, logger)
		}

		out, runErr := o.attempt(runCtx, job, &st)
		if runErr == nil {
			return o.complete(ctx, job, out, st, logger)
		}
		if runCtx.Err() != nil {
			return o.abort(ctx, runCtx, job.ID, st, logger)
		}
		if !o.cfg.Retry.ShouldRetry(runErr, attempt) {
			if recipe.IsRetryable(runErr) {
				runErr = budgetExceeded(attempt, runErr)
			}
			return o.finalize(ctx, job.ID, runErr, st, logger)
		}

		delay := o.cfg.Retry.Delay(runErr, attempt, o.clock.Now())
		metrics.ObserveRetry(string(recipe.CodeOf(runErr)))
		logger.Info("retrying job",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("code", string(recipe.CodeOf(runErr))),
			zap.Error(runErr))
		if err := o.sleep(runCtx, delay); err != nil {
			return o.abort(ctx, runCtx, job.ID, st, logger)
		}
	}
}

func (o *Orchestrator) attempt(ctx context.Context, job recipe.ImportJob, st *attemptState) (outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()
	out, err := o.run(attemptCtx, job, st)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if _, ok := recipe.AsImportError(err); !ok {
			err = recipe.NewError(recipe.CodeFetchTimeout, "the import took too long", err)
		}
	}
	return out, err
}

func (o *Orchestrator) run(ctx context.Context, job recipe.ImportJob, st *attemptState) (outcome, error) {
	link, err := o.resolveLink(job, st)
	if err != nil {
		return outcome{}, err
	}
	verdict, err := o.classifier.Classify(link.URL)
	if err != nil {
		return outcome{}, err
	}
	st.canonicalURL = verdict.URL

	if recipeID, found, err := o.dedup.ByURL(ctx, job.UserID, verdict.URL); err != nil {
		return outcome{}, err
	} else if found {
		return outcome{recipeID: recipeID, duplicate: true}, nil
	}

	page, err := o.fetcher.Fetch(ctx, verdict)
	if err != nil {
		return outcome{}, err
	}
	cand, err := o.extractor.Run(ctx, page, verdict)
	if err != nil {
		return outcome{}, err
	}
	conf := o.scorer.Aggregate(link.Confidence, verdict, cand)
	metrics.ObserveConfidence(string(conf.Tier), conf.Score)

	cand = normalize.Recipe(cand)
	key := normalize.Key(o.dedup.ScopeFor(job.UserID), verdict.URL, cand)
	if recipeID, found, err := o.dedup.Find(ctx, key); err != nil {
		return outcome{}, err
	} else if found {
		return outcome{recipeID: recipeID, duplicate: true, confidence: &conf}, nil
	}

	recipeID, err := o.ids.NewID()
	if err != nil {
		return outcome{}, fmt.Errorf("new recipe id: %w", err)
	}
	review := !confidence.AutoSave(conf, o.cfg.AutoSaveMin)
	stored := recipe.StoredRecipe{
		ID:             recipeID,
		OwnerID:        job.UserID,
		Key:            key,
		Recipe:         cand,
		Confidence:     conf,
		ReviewRequired: review,
		Nutrition:      recipe.NutritionPending,
		CreatedAt:      o.clock.Now(),
	}
	savedID, err := o.recipes.Save(ctx, stored)
	if errors.Is(err, recipe.ErrDuplicateRecipe) {
		// A concurrent import saved the same url first.
		if existing, found, ferr := o.dedup.Find(ctx, key); ferr == nil && found {
			return outcome{recipeID: existing, duplicate: true, confidence: &conf}, nil
		}
	}
	if err != nil {
		if _, ok := recipe.AsImportError(err); ok {
			return outcome{}, err
		}
		return outcome{}, recipe.NewError(recipe.CodePersistenceFailed, "the recipe could not be saved", err)
	}
	stored.ID = savedID
	return outcome{
		recipeID:   savedID,
		review:     review,
		confidence: &conf,
		page:       &page,
		stored:     &stored,
	}, nil
}

// resolveLink picks the URL to import. Explicit URLs win; a link-in-bio
// phrase is resolved only through the caller-supplied bio URL.
func (o *Orchestrator) resolveLink(job recipe.ImportJob, st *attemptState) (recipe.DetectedLink, error) {
	links := o.detector.Detect(job.Source.Value)
	if best, ok := linkdetect.BestURL(links); ok {
		return best, nil
	}
	if job.Source.Kind != recipe.SourceText || !linkdetect.HasBioPhrase(links) {
		return recipe.DetectedLink{}, recipe.NewError(recipe.CodeLinkNotFound, "no recipe link was found in the submission", nil)
	}
	if job.Source.BioURL == "" {
		st.needsBioURL = true
		return recipe.DetectedLink{}, recipe.NewError(recipe.CodeLinkNotFound,
			"the post points to a link in the author's bio; resubmit with the bio URL", nil)
	}
	bio, ok := linkdetect.BestURL(o.detector.Detect(job.Source.BioURL))
	if !ok {
		return recipe.DetectedLink{}, recipe.NewError(recipe.CodeLinkNotFound, "the supplied bio URL is not a valid link", nil)
	}
	bio.Confidence = o.cfg.BioURLConfidence
	return bio, nil
}

func budgetExceeded(attempts int, last error) error {
	return recipe.NewError(recipe.CodeRetryBudgetExceeded,
		fmt.Sprintf("gave up after %d attempts; last error %s: %s", attempts, recipe.CodeOf(last), recipe.PublicMessage(last)),
		last)
}

func (o *Orchestrator) complete(ctx context.Context, job recipe.ImportJob, out outcome, st attemptState, logger *zap.Logger) error {
	wctx, cancel := o.sideEffectContext(ctx)
	defer cancel()
	if out.review && out.page != nil {
		o.snapshot(wctx, job.ID, *out.page, logger)
	}

	var notice recipe.ErrorCode
	switch {
	case out.duplicate:
		notice = recipe.CodeDuplicateRecipe
	case out.review:
		notice = recipe.CodeExtractionLowConfidence
	}
	completedAt := o.clock.Now()
	done, err := o.jobs.Transition(wctx, job.ID, recipe.JobStatusCompleted, func(j *recipe.ImportJob) {
		j.RecipeID = out.recipeID
		j.Duplicate = out.duplicate
		j.ReviewRequired = out.review
		j.Notice = notice
		j.Confidence = out.confidence
		j.CanonicalURL = st.canonicalURL
		j.CompletedAt = &completedAt
	})
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidTransition) {
			logger.Info("job finished elsewhere before completion", zap.String("recipe_id", out.recipeID))
			return nil
		}
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	logger.Info("job completed",
		zap.String("recipe_id", done.RecipeID),
		zap.Bool("duplicate", done.Duplicate),
		zap.Bool("review_required", done.ReviewRequired))
	o.finished(done)
	if out.stored != nil {
		o.computeNutrition(*out.stored)
	}
	return nil
}

// finalize records a failure reached by the job itself.
func (o *Orchestrator) finalize(ctx context.Context, jobID string, cause error, st attemptState, logger *zap.Logger) error {
	wctx, cancel := o.sideEffectContext(ctx)
	defer cancel()
	job, err := o.fail(wctx, jobID, cause, st)
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidTransition) {
			logger.Debug("job already terminal", zap.NamedError("cause", cause))
			return nil
		}
		return err
	}
	logger.Info("job failed",
		zap.String("code", string(job.ErrorCode)),
		zap.Error(cause))
	return nil
}

// abort handles an attempt interrupted by cancellation or shutdown.
func (o *Orchestrator) abort(ctx, runCtx context.Context, jobID string, st attemptState, logger *zap.Logger) error {
	cause := error(errShutdown)
	if errors.Is(context.Cause(runCtx), errCancelled) {
		cause = errCancelled
	}
	return o.finalize(ctx, jobID, cause, st, logger)
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error, st attemptState) (recipe.ImportJob, error) {
	code := recipe.CodeOf(cause)
	message := recipe.PublicMessage(cause)
	completedAt := o.clock.Now()
	job, err := o.jobs.Transition(ctx, jobID, recipe.JobStatusFailed, func(j *recipe.ImportJob) {
		j.ErrorCode = code
		j.ErrorMessage = message
		j.NeedsBioURL = st.needsBioURL
		if st.canonicalURL != "" {
			j.CanonicalURL = st.canonicalURL
		}
		j.CompletedAt = &completedAt
	})
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("fail job %s: %w", jobID, err)
	}
	o.finished(job)
	return job, nil
}

func (o *Orchestrator) finished(job recipe.ImportJob) {
	var duration time.Duration
	if job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(job.CreatedAt)
	}
	metrics.ObserveJob(string(job.Status), string(job.ErrorCode), duration)
	o.notify(job)
}

func (o *Orchestrator) notify(job recipe.ImportJob) {
	if o.notifier == nil {
		return
	}
	event := recipe.JobEvent{
		JobID:     job.ID,
		UserID:    job.UserID,
		Status:    job.Status,
		RecipeID:  job.RecipeID,
		ErrorCode: job.ErrorCode,
		Notice:    job.Notice,
		Duplicate: job.Duplicate,
		Review:    job.ReviewRequired,
	}
	if job.CompletedAt != nil {
		event.OccurredAt = *job.CompletedAt
	}
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SideEffectTimeout)
		defer cancel()
		if err := o.notifier.Notify(ctx, event); err != nil {
			metrics.ObserveNotification("error")
			o.logger.Warn("job notification failed",
				zap.String("job_id", event.JobID),
				zap.Error(err))
			return
		}
		metrics.ObserveNotification("ok")
	}()
}

func (o *Orchestrator) computeNutrition(stored recipe.StoredRecipe) {
	if o.nutrition == nil {
		return
	}
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		o.nutritionSlots <- struct{}{}
		defer func() { <-o.nutritionSlots }()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SideEffectTimeout)
		defer cancel()
		logger := o.logger.With(zap.String("recipe_id", stored.ID))
		status := recipe.NutritionAvailable
		facts, err := o.nutrition.Compute(ctx, stored.Recipe.Ingredients, stored.Recipe.Servings)
		var factsPtr *recipe.NutritionFacts
		if err != nil {
			status = recipe.NutritionUnavailable
			if errors.Is(err, nutrition.ErrDisabled) {
				logger.Debug("nutrition engine disabled")
			} else {
				logger.Warn("nutrition calculation failed",
					zap.String("code", string(recipe.CodeNutritionCalculationFailed)),
					zap.Error(err))
			}
		} else {
			factsPtr = &facts
		}
		metrics.ObserveNutrition(string(status))
		if err := o.recipes.SetNutrition(ctx, stored.ID, status, factsPtr); err != nil {
			logger.Warn("nutrition status not saved", zap.Error(err))
		}
	}()
}

// snapshot stores the fetched page for reviewers. Failures are logged only.
func (o *Orchestrator) snapshot(ctx context.Context, jobID string, page recipe.CrawlResult, logger *zap.Logger) {
	if o.blobs == nil || len(page.Body) == 0 {
		return
	}
	location, err := o.blobs.PutObject(ctx, jobID+".html", "text/html; charset=utf-8", bytes.NewReader(page.Body))
	if err != nil {
		logger.Warn("review snapshot not stored", zap.Error(err))
		return
	}
	logger.Debug("review snapshot stored", zap.String("location", location))
}

func (o *Orchestrator) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SideEffectTimeout)
}

func (o *Orchestrator) track(jobID string, cancel context.CancelCauseFunc) {
	o.mu.Lock()
	o.running[jobID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(jobID string) {
	o.mu.Lock()
	delete(o.running, jobID)
	o.mu.Unlock()
}

func (o *Orchestrator) interrupt(jobID string) {
	o.mu.Lock()
	cancel, ok := o.running[jobID]
	o.mu.Unlock()
	if ok {
		cancel(errCancelled)
	}
}
