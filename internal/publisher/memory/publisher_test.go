package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

func TestNotifierRecordsEvents(t *testing.T) {
	t.Parallel()

	n := New()
	require.NoError(t, n.Notify(context.Background(), recipe.JobEvent{JobID: "a"}))
	n.FailWith(errors.New("broker down"))
	require.Error(t, n.Notify(context.Background(), recipe.JobEvent{JobID: "b"}))

	events := n.Events()
	require.Len(t, events, 2)
	events[0].JobID = "modified"
	require.Equal(t, "a", n.Events()[0].JobID)
}
