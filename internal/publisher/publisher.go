// Package publisher delivers terminal job events.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Log writes terminal events to the structured log. It is the notifier used
// when no broker is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notifier")}
}

// Notify implements recipe.Notifier.
func (l *Log) Notify(_ context.Context, event recipe.JobEvent) error {
	l.logger.Info("import job finished",
		zap.String("job_id", event.JobID),
		zap.String("user_id", event.UserID),
		zap.String("status", string(event.Status)),
		zap.String("recipe_id", event.RecipeID),
		zap.String("code", string(event.ErrorCode)),
		zap.String("notice", string(event.Notice)),
		zap.Bool("duplicate", event.Duplicate),
		zap.Bool("review_required", event.Review))
	return nil
}
