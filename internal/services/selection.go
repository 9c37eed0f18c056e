package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/storage"
)

// SelectionTracker records which option the user picked per agent message
// and locks the message against further picks. The lock is monotonic for the
// lifetime of the session; a second pick is an idempotent no-op. State is
// persisted synchronously through the redundant identity-scoped store and a
// parallel independent map holds treatment-name picks.
type SelectionTracker struct {
	mu sync.Mutex
	kv storage.KeyValue
}

// NewSelectionTracker creates a tracker persisting through the given store.
func NewSelectionTracker(kv storage.KeyValue) *SelectionTracker {
	return &SelectionTracker{kv: kv}
}

func selectionKey(identityKey, sessionID, messageID string) string {
	return fmt.Sprintf("selection:%s:%s:%s", identityKey, sessionID, messageID)
}

func treatmentKey(identityKey, sessionID, messageID string) string {
	return fmt.Sprintf("treatment:%s:%s:%s", identityKey, sessionID, messageID)
}

// Choose records the option picked for a message and locks it. If the
// message is already locked the call is a no-op.
func (t *SelectionTracker) Choose(ctx context.Context, identityKey, sessionID, messageID, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sel, err := t.load(ctx, identityKey, sessionID, messageID); err == nil && sel.IsLocked {
		return nil
	}

	sel := models.Selection{
		IdentityKey: identityKey,
		SessionID:   sessionID,
		MessageID:   messageID,
		Value:       value,
		IsLocked:    true,
		ChosenAt:    time.Now(),
	}
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, selectionKey(identityKey, sessionID, messageID), string(b))
}

// SelectionFor returns the recorded option value, or "" when none exists.
func (t *SelectionTracker) SelectionFor(ctx context.Context, identityKey, sessionID, messageID string) string {
	sel, err := t.load(ctx, identityKey, sessionID, messageID)
	if err != nil {
		return ""
	}
	return sel.Value
}

// IsLocked reports whether further picks for the message are locked out.
func (t *SelectionTracker) IsLocked(ctx context.Context, identityKey, sessionID, messageID string) bool {
	sel, err := t.load(ctx, identityKey, sessionID, messageID)
	return err == nil && sel.IsLocked
}

// ChooseTreatment records a treatment-name pick. Free-text "other" names are
// stored verbatim. Treatment picks do not lock and may be revised until the
// session ends.
func (t *SelectionTracker) ChooseTreatment(ctx context.Context, identityKey, sessionID, messageID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	choice := models.TreatmentChoice{
		IdentityKey: identityKey,
		SessionID:   sessionID,
		MessageID:   messageID,
		Name:        name,
		ChosenAt:    time.Now(),
	}
	b, err := json.Marshal(choice)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, treatmentKey(identityKey, sessionID, messageID), string(b))
}

// TreatmentFor returns the recorded treatment name, or "" when none exists.
func (t *SelectionTracker) TreatmentFor(ctx context.Context, identityKey, sessionID, messageID string) string {
	raw, err := t.kv.Get(ctx, treatmentKey(identityKey, sessionID, messageID))
	if err != nil {
		return ""
	}
	var choice models.TreatmentChoice
	if err := json.Unmarshal([]byte(raw), &choice); err != nil {
		return ""
	}
	return choice.Name
}

// ClearSession purges both maps for one (identity, session) scope. Called
// whenever the session is replaced or the identity logs out.
func (t *SelectionTracker) ClearSession(ctx context.Context, identityKey, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.DeletePrefix(ctx, fmt.Sprintf("selection:%s:%s:", identityKey, sessionID)); err != nil {
		return err
	}
	return t.kv.DeletePrefix(ctx, fmt.Sprintf("treatment:%s:%s:", identityKey, sessionID))
}

// ClearIdentity purges every selection and treatment pick for an identity,
// regardless of session.
func (t *SelectionTracker) ClearIdentity(ctx context.Context, identityKey string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.DeletePrefix(ctx, "selection:"+identityKey+":"); err != nil {
		return err
	}
	return t.kv.DeletePrefix(ctx, "treatment:"+identityKey+":")
}

func (t *SelectionTracker) load(ctx context.Context, identityKey, sessionID, messageID string) (models.Selection, error) {
	raw, err := t.kv.Get(ctx, selectionKey(identityKey, sessionID, messageID))
	if err != nil {
		return models.Selection{}, err
	}
	var sel models.Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return models.Selection{}, errors.New("corrupt selection record")
	}
	return sel, nil
}
