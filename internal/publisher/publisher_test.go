package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func TestLogNotifierWritesEvent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))
	require.NoError(t, n.Notify(context.Background(), recipe.JobEvent{
		JobID:     "job-1",
		Status:    recipe.JobStatusFailed,
		ErrorCode: recipe.CodeLinkNotFound,
	}))

	entries := logs.FilterField(zap.String("job_id", "job-1")).All()
	require.Len(t, entries, 1)
	require.Equal(t, "LinkNotFound", entries[0].ContextMap()["code"])
}
