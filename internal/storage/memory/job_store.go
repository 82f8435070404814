// Package memory provides in-process stores for development, the one-shot
// import command and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// JobStore keeps import jobs in a map and enforces the lifecycle.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]recipe.ImportJob
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]recipe.ImportJob)}
}

// CreateJob stores a new pending job.
func (s *JobStore) CreateJob(_ context.Context, job recipe.ImportJob) error {
	if job.Status != recipe.JobStatusPending {
		return fmt.Errorf("create job %s with status %s: %w", job.ID, job.Status, recipe.ErrInvalidTransition)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return recipe.ErrJobExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (recipe.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.ImportJob{}, recipe.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// ListJobs returns a user's jobs, newest first.
func (s *JobStore) ListJobs(_ context.Context, userID string, limit int) ([]recipe.ImportJob, error) {
	s.mu.RLock()
	out := make([]recipe.ImportJob, 0)
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, cloneJob(job))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transition moves a job to status and applies mutate under the store lock.
func (s *JobStore) Transition(
	_ context.Context,
	jobID string,
	to recipe.JobStatus,
	mutate func(*recipe.ImportJob),
) (recipe.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return recipe.ImportJob{}, recipe.ErrJobNotFound
	}
	if !recipe.CanTransition(job.Status, to) {
		return recipe.ImportJob{}, fmt.Errorf("%s -> %s: %w", job.Status, to, recipe.ErrInvalidTransition)
	}
	next := cloneJob(job)
	if mutate != nil {
		mutate(&next)
	}
	next.ID = job.ID
	next.Status = to
	s.jobs[jobID] = next
	return cloneJob(next), nil
}

// RecordAttempt increments the attempt counter of a processing job.
func (s *JobStore) RecordAttempt(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return 0, recipe.ErrJobNotFound
	}
	if job.Status != recipe.JobStatusProcessing {
		return 0, fmt.Errorf("record attempt on %s job: %w", job.Status, recipe.ErrInvalidTransition)
	}
	job.Attempts++
	s.jobs[jobID] = job
	return job.Attempts, nil
}

func cloneJob(job recipe.ImportJob) recipe.ImportJob {
	out := job
	if job.StartedAt != nil {
		t := *job.StartedAt
		out.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	if job.Confidence != nil {
		c := *job.Confidence
		out.Confidence = &c
	}
	return out
}
