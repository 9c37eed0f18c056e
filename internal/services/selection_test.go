package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NavalEP/carechat-engine/internal/storage"
)

func TestChooseLocksFirstPick(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	tracker := NewSelectionTracker(kv)

	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES1", "msg1", "1"))
	assert.True(t, tracker.IsLocked(ctx, "doctor:D1", "SES1", "msg1"))

	// Second pick is an idempotent no-op.
	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES1", "msg1", "2"))
	assert.Equal(t, "1", tracker.SelectionFor(ctx, "doctor:D1", "SES1", "msg1"))
}

func TestSelectionsAreScopedPerMessage(t *testing.T) {
	ctx := context.Background()
	tracker := NewSelectionTracker(storage.NewMemoryStore())

	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES1", "msg1", "1"))
	assert.False(t, tracker.IsLocked(ctx, "doctor:D1", "SES1", "msg2"))
	assert.Empty(t, tracker.SelectionFor(ctx, "doctor:D1", "SES1", "msg2"))
}

func TestSelectionSurvivesTrackerRestart(t *testing.T) {
	// Round-trip through storage: a fresh tracker over the same store sees
	// the identical logical value.
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	first := NewSelectionTracker(kv)
	require.NoError(t, first.Choose(ctx, "patient:98765", "SES9", "msgA", "3"))

	second := NewSelectionTracker(kv)
	assert.Equal(t, "3", second.SelectionFor(ctx, "patient:98765", "SES9", "msgA"))
	assert.True(t, second.IsLocked(ctx, "patient:98765", "SES9", "msgA"))
}

func TestTreatmentMapIsIndependent(t *testing.T) {
	ctx := context.Background()
	tracker := NewSelectionTracker(storage.NewMemoryStore())

	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES1", "msg1", "2"))
	require.NoError(t, tracker.ChooseTreatment(ctx, "doctor:D1", "SES1", "msg1", "Root Canal"))

	assert.Equal(t, "2", tracker.SelectionFor(ctx, "doctor:D1", "SES1", "msg1"))
	assert.Equal(t, "Root Canal", tracker.TreatmentFor(ctx, "doctor:D1", "SES1", "msg1"))

	// Free-text "other" treatments are stored verbatim and may be revised.
	require.NoError(t, tracker.ChooseTreatment(ctx, "doctor:D1", "SES1", "msg1", "custom physio plan"))
	assert.Equal(t, "custom physio plan", tracker.TreatmentFor(ctx, "doctor:D1", "SES1", "msg1"))
}

func TestClearSessionPurgesBothMaps(t *testing.T) {
	ctx := context.Background()
	tracker := NewSelectionTracker(storage.NewMemoryStore())

	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES1", "msg1", "1"))
	require.NoError(t, tracker.ChooseTreatment(ctx, "doctor:D1", "SES1", "msg1", "Braces"))
	require.NoError(t, tracker.Choose(ctx, "doctor:D1", "SES2", "msg1", "1"))

	require.NoError(t, tracker.ClearSession(ctx, "doctor:D1", "SES1"))

	assert.False(t, tracker.IsLocked(ctx, "doctor:D1", "SES1", "msg1"))
	assert.Empty(t, tracker.TreatmentFor(ctx, "doctor:D1", "SES1", "msg1"))
	// Other sessions are untouched.
	assert.True(t, tracker.IsLocked(ctx, "doctor:D1", "SES2", "msg1"))
}
