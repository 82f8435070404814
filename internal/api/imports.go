package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/id/uuid"
	"github.com/JakeFAU/recipe-importer/internal/orchestrator"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	userIDHeader     = "X-User-ID"
)

type urlImportRequest struct {
	URL    string `json:"url" validate:"required,max=2048"`
	UserID string `json:"user_id" validate:"required,max=128"`
}

type socialImportRequest struct {
	Text   string `json:"text" validate:"required,max=10000"`
	BioURL string `json:"bio_url" validate:"omitempty,max=2048"`
	UserID string `json:"user_id" validate:"required,max=128"`
}

type cancelRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

type acceptedResponse struct {
	JobID  string           `json:"job_id"`
	Status recipe.JobStatus `json:"status"`
}

func (s *Server) submitURL(w http.ResponseWriter, r *http.Request) {
	var req urlImportRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.UserID = userFrom(r, req.UserID)
	if !s.valid(w, req) {
		return
	}
	job, err := s.importer.SubmitURL(r.Context(), req.UserID, req.URL)
	s.accepted(w, job, err)
}

func (s *Server) submitSocial(w http.ResponseWriter, r *http.Request) {
	var req socialImportRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.UserID = userFrom(r, req.UserID)
	if !s.valid(w, req) {
		return
	}
	job, err := s.importer.SubmitText(r.Context(), req.UserID, req.Text, req.BioURL)
	s.accepted(w, job, err)
}

func (s *Server) accepted(w http.ResponseWriter, job recipe.ImportJob, err error) {
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r, r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	jobs, err := s.importer.List(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []recipe.ImportJob{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobID(w, r)
	if !ok {
		return
	}
	userID := userFrom(r, r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	job, err := s.importer.Status(r.Context(), jobID)
	if err == nil && job.UserID != userID {
		err = recipe.ErrForbidden
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, &req) {
			return
		}
	}
	req.UserID = userFrom(r, req.UserID)
	if !s.valid(w, req) {
		return
	}
	job, err := s.importer.Cancel(r.Context(), jobID, req.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) domainHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.writeError(w, http.StatusNotImplemented, "domain health unavailable")
		return
	}
	domain, err := recipe.Hostname(chi.URLParam(r, "domain"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid domain")
		return
	}
	s.writeJSON(w, http.StatusOK, s.health.Health(domain))
}

func (s *Server) reloadRegistry(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		s.writeError(w, http.StatusNotImplemented, "registry reload unavailable")
		return
	}
	if err := s.registry.Reload(); err != nil {
		s.logger.Error("registry reload failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "registry reload failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := chi.URLParam(r, "job_id")
	if !uuid.Valid(jobID) {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return "", false
	}
	return jobID, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *Server) valid(w http.ResponseWriter, req any) bool {
	err := s.validate.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		s.writeError(w, http.StatusBadRequest, strings.ToLower(fe.Field())+" failed "+fe.Tag()+" validation")
		return false
	}
	s.writeError(w, http.StatusBadRequest, "invalid request")
	return false
}

// writeServiceError maps importer errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recipe.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, recipe.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "job belongs to another user")
	case errors.Is(err, recipe.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, "job is already finished")
	case errors.Is(err, orchestrator.ErrInvalidSubmission):
		s.writeError(w, http.StatusBadRequest, "user_id and a source are required")
	case errors.Is(err, orchestrator.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "the importer is busy, try again later")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// userFrom prefers the payload user and falls back to the X-User-ID header.
func userFrom(r *http.Request, fromBody string) string {
	if u := strings.TrimSpace(fromBody); u != "" {
		return u
	}
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}
