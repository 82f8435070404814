package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

const uniqueViolation = "23505"

var jobColumns = []string{
	"id", "user_id", "source_kind", "source_value", "bio_url", "status", "attempts",
	"error_code", "error_message", "notice", "recipe_id", "duplicate", "review_required",
	"needs_bio_url", "confidence", "canonical_url", "created_at", "started_at", "completed_at",
}

// JobStore persists import jobs in the import_jobs table.
type JobStore struct {
	pool Pool
}

// NewJobStore wraps pool.
func NewJobStore(pool Pool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// CreateJob inserts a new pending job.
func (s *JobStore) CreateJob(ctx context.Context, job recipe.ImportJob) error {
	if job.Status != recipe.JobStatusPending {
		return fmt.Errorf("create job %s with status %s: %w", job.ID, job.Status, recipe.ErrInvalidTransition)
	}
	values, err := jobValues(job)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("import_jobs").Columns(jobColumns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert job: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return recipe.ErrJobExists
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (recipe.ImportJob, error) {
	query, args, err := psql.Select(jobColumns...).From("import_jobs").Where(sq.Eq{"id": jobID}).ToSql()
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("build select job: %w", err)
	}
	job, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.ImportJob{}, recipe.ErrJobNotFound
	}
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a user's jobs, newest first.
func (s *JobStore) ListJobs(ctx context.Context, userID string, limit int) ([]recipe.ImportJob, error) {
	builder := psql.Select(jobColumns...).
		From("import_jobs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list jobs: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]recipe.ImportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Transition locks the row, applies mutate and writes it back. The UPDATE
// only matches rows whose status may legally move to the target.
func (s *JobStore) Transition(
	ctx context.Context,
	jobID string,
	to recipe.JobStatus,
	mutate func(*recipe.ImportJob),
) (out recipe.ImportJob, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query, args, err := psql.Select(jobColumns...).From("import_jobs").
		Where(sq.Eq{"id": jobID}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("build lock job: %w", err)
	}
	job, err := scanJob(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return recipe.ImportJob{}, recipe.ErrJobNotFound
	}
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("lock job: %w", err)
	}
	if !recipe.CanTransition(job.Status, to) {
		return recipe.ImportJob{}, fmt.Errorf("%s -> %s: %w", job.Status, to, recipe.ErrInvalidTransition)
	}
	from := job.Status
	if mutate != nil {
		mutate(&job)
	}
	job.ID = jobID
	job.Status = to

	confidence, err := marshalConfidence(job.Confidence)
	if err != nil {
		return recipe.ImportJob{}, err
	}
	allowed := make([]string, 0, 2)
	for _, status := range recipe.SourcesFrom(to) {
		allowed = append(allowed, string(status))
	}
	sort.Strings(allowed)
	update, args, err := psql.Update("import_jobs").
		Set("status", string(job.Status)).
		Set("attempts", job.Attempts).
		Set("error_code", string(job.ErrorCode)).
		Set("error_message", job.ErrorMessage).
		Set("notice", string(job.Notice)).
		Set("recipe_id", job.RecipeID).
		Set("duplicate", job.Duplicate).
		Set("review_required", job.ReviewRequired).
		Set("needs_bio_url", job.NeedsBioURL).
		Set("confidence", confidence).
		Set("canonical_url", job.CanonicalURL).
		Set("started_at", job.StartedAt).
		Set("completed_at", job.CompletedAt).
		Where(sq.Eq{"id": jobID}).
		Where(sq.Expr("status = ANY(?)", allowed)).
		ToSql()
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("build transition: %w", err)
	}
	tag, err := tx.Exec(ctx, update, args...)
	if err != nil {
		return recipe.ImportJob{}, fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recipe.ImportJob{}, fmt.Errorf("%s -> %s: %w", from, to, recipe.ErrInvalidTransition)
	}
	if err := tx.Commit(ctx); err != nil {
		return recipe.ImportJob{}, fmt.Errorf("commit transition: %w", err)
	}
	return job, nil
}

// RecordAttempt increments the attempt counter of a processing job.
func (s *JobStore) RecordAttempt(ctx context.Context, jobID string) (int, error) {
	query, args, err := psql.Update("import_jobs").
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": jobID, "status": string(recipe.JobStatusProcessing)}).
		Suffix("RETURNING attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record attempt: %w", err)
	}
	var attempts int
	err = s.pool.QueryRow(ctx, query, args...).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("record attempt on job %s: %w", jobID, recipe.ErrInvalidTransition)
	}
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return attempts, nil
}

func jobValues(job recipe.ImportJob) ([]any, error) {
	confidence, err := marshalConfidence(job.Confidence)
	if err != nil {
		return nil, err
	}
	return []any{
		job.ID, job.UserID, string(job.Source.Kind), job.Source.Value, job.Source.BioURL,
		string(job.Status), job.Attempts, string(job.ErrorCode), job.ErrorMessage, string(job.Notice),
		job.RecipeID, job.Duplicate, job.ReviewRequired, job.NeedsBioURL, confidence,
		job.CanonicalURL, job.CreatedAt, job.StartedAt, job.CompletedAt,
	}, nil
}

func marshalConfidence(c *recipe.AggregatedConfidence) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal confidence: %w", err)
	}
	return raw, nil
}

func scanJob(row pgx.Row) (recipe.ImportJob, error) {
	var (
		job                        recipe.ImportJob
		kind, status, code, notice string
		confidence                 []byte
		startedAt, completedAt     *time.Time
	)
	err := row.Scan(
		&job.ID, &job.UserID, &kind, &job.Source.Value, &job.Source.BioURL,
		&status, &job.Attempts, &code, &job.ErrorMessage, &notice,
		&job.RecipeID, &job.Duplicate, &job.ReviewRequired, &job.NeedsBioURL, &confidence,
		&job.CanonicalURL, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return recipe.ImportJob{}, err
	}
	job.Source.Kind = recipe.SourceKind(kind)
	job.Status = recipe.JobStatus(status)
	job.ErrorCode = recipe.ErrorCode(code)
	job.Notice = recipe.ErrorCode(notice)
	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	if len(confidence) > 0 && string(confidence) != "null" {
		var c recipe.AggregatedConfidence
		if err := json.Unmarshal(confidence, &c); err != nil {
			return recipe.ImportJob{}, fmt.Errorf("decode confidence: %w", err)
		}
		job.Confidence = &c
	}
	return job, nil
}
