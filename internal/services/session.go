package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/storage"
)

// SessionState is the lifecycle position of the conversation machine.
type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateRestoring     SessionState = "restoring"
	StateCreating      SessionState = "creating"
	StateActive        SessionState = "active"
	StateExpired       SessionState = "expired"
	StateLoggedOut     SessionState = "logged_out"
)

// Storage keys. Identity fields go through the redundant three-slot store;
// everything session-scoped lives under the identity key so logout and
// new-inquiry can purge by prefix.
const (
	keyIdentityKind   = "identity:kind"
	keyIdentityDoctor = "identity:doctor_id"
	keyIdentityPhone  = "identity:phone"
	keyIdentityName   = "identity:name"
	keyFreshLogin     = "auth:fresh_login"
	keyAuthToken      = "auth:token"
	keyCurrentSession = "session:current_id"
	keySessionCount   = "session:count"
)

const (
	sessionTTL   = 30 * 24 * time.Hour
	historyCap   = 30
	restartDelay = 2 * time.Second
)

// ErrConfirmationRequired is returned by NewInquiry when the transcript
// holds user messages and the caller has not confirmed discarding them.
var ErrConfirmationRequired = errors.New("new inquiry requires confirmation")

// ErrNoIdentity is returned when no identity field survives in any storage
// slot.
var ErrNoIdentity = errors.New("no account identity in storage")

// SessionMachine decides, per app load and per explicit user action, whether
// to restore, create or expire a conversation session. It owns the transcript
// and supplies the session id for every outbound call.
type SessionMachine struct {
	mu         sync.Mutex
	kv         storage.KeyValue // redundant store
	api        CarePayAPI
	selections *SelectionTracker

	state      SessionState
	identity   models.Identity
	sessionID  string
	transcript []models.Message
}

// Singleton wiring, set from main.go.
var (
	sessionMachineInstance *SessionMachine
	sessionMachineMu       sync.RWMutex
)

// SetSessionMachine sets the global session machine instance.
func SetSessionMachine(m *SessionMachine) {
	sessionMachineMu.Lock()
	defer sessionMachineMu.Unlock()
	sessionMachineInstance = m
}

// GetSessionMachine returns the global session machine instance.
func GetSessionMachine() *SessionMachine {
	sessionMachineMu.RLock()
	defer sessionMachineMu.RUnlock()
	return sessionMachineInstance
}

// NewSessionMachine creates a session machine over the redundant store, the
// upstream bot API and the selection tracker it purges on session turnover.
func NewSessionMachine(kv storage.KeyValue, api CarePayAPI, selections *SelectionTracker) *SessionMachine {
	return &SessionMachine{
		kv:         kv,
		api:        api,
		selections: selections,
		state:      StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *SessionMachine) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the active session id, or "".
func (m *SessionMachine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Identity returns the loaded account identity.
func (m *SessionMachine) Identity() models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Transcript returns a copy of the transcript in insertion order.
func (m *SessionMachine) Transcript() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.transcript))
	copy(out, m.transcript)
	return out
}

// SetIdentity stores a freshly authenticated identity into all three slots
// and arms the fresh-login flag so the next Start creates a brand-new
// session instead of restoring.
func (m *SessionMachine) SetIdentity(ctx context.Context, identity models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if identity.Kind == models.IdentityPatient {
		// A patient login on a shared device replaces any stored doctor
		// identity. The reverse never happens implicitly.
		if err := m.purgeIdentityFields(ctx); err != nil {
			return err
		}
	}
	if err := m.kv.Set(ctx, keyIdentityKind, identity.Kind); err != nil {
		return err
	}
	if identity.DoctorID != "" {
		if err := m.kv.Set(ctx, keyIdentityDoctor, identity.DoctorID); err != nil {
			return err
		}
	}
	if identity.Phone != "" {
		if err := m.kv.Set(ctx, keyIdentityPhone, identity.Phone); err != nil {
			return err
		}
	}
	if identity.Name != "" {
		if err := m.kv.Set(ctx, keyIdentityName, identity.Name); err != nil {
			return err
		}
	}
	if err := m.kv.Set(ctx, keyFreshLogin, "1"); err != nil {
		return err
	}
	m.identity = identity
	return nil
}

// Start runs the per-app-load decision: load identity from the redundant
// slots, then force creation on a fresh login or attempt restoration
// otherwise. Any restoration failure falls through to creation.
func (m *SessionMachine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadIdentity(ctx); err != nil {
		m.state = StateLoggedOut
		return err
	}

	if _, err := m.kv.Get(ctx, keyFreshLogin); err == nil {
		_ = m.kv.Delete(ctx, keyFreshLogin)
		return m.create(ctx)
	}

	m.state = StateRestoring
	if err := m.restore(ctx); err != nil {
		log.Printf("session: restore failed for %s, creating new: %v", m.identity.Key(), err)
		return m.create(ctx)
	}
	return nil
}

// loadIdentity reads identity fields through the redundant store; if any of
// the three copies of a field exists the identity is considered present.
func (m *SessionMachine) loadIdentity(ctx context.Context) error {
	kind, _ := m.kv.Get(ctx, keyIdentityKind)
	doctorID, _ := m.kv.Get(ctx, keyIdentityDoctor)
	phone, _ := m.kv.Get(ctx, keyIdentityPhone)
	name, _ := m.kv.Get(ctx, keyIdentityName)

	identity := models.Identity{Kind: kind, DoctorID: doctorID, Phone: phone, Name: name}
	if identity.IsZero() {
		return ErrNoIdentity
	}
	if identity.Kind == "" {
		if identity.DoctorID != "" {
			identity.Kind = models.IdentityDoctor
		} else {
			identity.Kind = models.IdentityPatient
		}
	}
	m.identity = identity
	return nil
}

func sessionRecordKey(identityKey string) string {
	return fmt.Sprintf("session:%s:record", identityKey)
}

func historyKey(identityKey string) string {
	return fmt.Sprintf("history:%s", identityKey)
}

// restore looks up a candidate session id, verifies it is not expired
// locally, then confirms it with the backend and rehydrates the transcript.
func (m *SessionMachine) restore(ctx context.Context) error {
	sessionID, err := m.findStoredSession(ctx)
	if err != nil {
		return err
	}

	details, err := m.api.GetSessionDetails(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("backend rejected session %s: %w", sessionID, err)
	}

	m.sessionID = sessionID
	m.transcript = details.Messages()
	m.state = StateActive
	_ = m.kv.Set(ctx, keyCurrentSession, sessionID)
	log.Printf("session: restored %s for %s (%d messages)", sessionID, m.identity.Key(), len(m.transcript))
	return nil
}

// findStoredSession tries, in order: the identity-scoped session record, the
// generic current-session key, and the most recent locally cached chat
// history entry for the identity.
func (m *SessionMachine) findStoredSession(ctx context.Context) (string, error) {
	if raw, err := m.kv.Get(ctx, sessionRecordKey(m.identity.Key())); err == nil {
		var record models.SessionRecord
		if json.Unmarshal([]byte(raw), &record) == nil && record.SessionID != "" {
			if record.Expired() {
				m.state = StateExpired
				return "", fmt.Errorf("stored session %s expired at %s", record.SessionID, record.ExpiresAt)
			}
			return record.SessionID, nil
		}
	}

	if sessionID, err := m.kv.Get(ctx, keyCurrentSession); err == nil && sessionID != "" {
		return sessionID, nil
	}

	if entries, err := m.loadHistory(ctx); err == nil && len(entries) > 0 {
		return entries[len(entries)-1].SessionID, nil
	}

	return "", errors.New("no stored session id found")
}

// create requests a brand-new session id, stores it with a 30-day expiry and
// enters Active with an empty transcript. The first agent message arrives
// from a subsequent detail fetch, never synthesized locally.
func (m *SessionMachine) create(ctx context.Context) error {
	m.state = StateCreating

	sessionID, err := m.api.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if m.sessionID != "" && m.selections != nil {
		_ = m.selections.ClearSession(ctx, m.identity.Key(), m.sessionID)
	}

	record := models.SessionRecord{
		IdentityKey: m.identity.Key(),
		SessionID:   sessionID,
		ExpiresAt:   time.Now().Add(sessionTTL),
	}
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, sessionRecordKey(m.identity.Key()), string(b)); err != nil {
		return err
	}
	_ = m.kv.Set(ctx, keyCurrentSession, sessionID)
	m.bumpSessionCount(ctx)

	m.sessionID = sessionID
	m.transcript = nil
	m.state = StateActive
	log.Printf("session: created %s for %s", sessionID, m.identity.Key())
	return nil
}

// Send delivers one user turn through the active session and appends both
// sides to the transcript. On a failure that indicates session loss the
// machine schedules an automatic restart after a short delay.
func (m *SessionMachine) Send(ctx context.Context, text string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return models.Message{}, fmt.Errorf("session not active (state %s)", m.state)
	}

	userMsg := models.NewMessage(text, models.SenderUser)
	reply, err := m.api.SendMessage(ctx, m.sessionID, text)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return models.Message{}, err
		}
		if isSessionLoss(err) {
			go m.restartAfterDelay()
		}
		return models.Message{}, err
	}

	agentMsg := models.NewMessage(reply, models.SenderAgent)
	m.transcript = append(m.transcript, userMsg, agentMsg)
	m.recordHistory(ctx, text)
	return agentMsg, nil
}

// OverwriteMessageText replaces the text of an existing transcript message
// in place (same id). Used to transition an upload-progress message to its
// success or failure text.
func (m *SessionMachine) OverwriteMessageText(messageID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.transcript {
		if m.transcript[i].ID == messageID {
			m.transcript[i].Text = text
			return true
		}
	}
	return false
}

// AppendLocal appends a locally generated message (upload placeholder) to
// the transcript without an outbound call.
func (m *SessionMachine) AppendLocal(msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript = append(m.transcript, msg)
}

// NewInquiry discards the active session and starts over. When the
// transcript holds at least one user message the caller must pass
// confirmed=true, acknowledging the interactive confirmation.
func (m *SessionMachine) NewInquiry(ctx context.Context, confirmed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasUserMessages() && !confirmed {
		return ErrConfirmationRequired
	}
	if err := m.purgeSessionScope(ctx); err != nil {
		return err
	}
	return m.create(ctx)
}

// Logout purges session-scoped storage and the auth token. Patient identity
// is fully purged; doctor identity survives logout and is only displaced by
// a patient logging in on the same device.
func (m *SessionMachine) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.purgeSessionScope(ctx); err != nil {
		return err
	}
	_ = m.kv.Delete(ctx, keyAuthToken)
	_ = m.kv.Delete(ctx, keyFreshLogin)

	if m.identity.Kind == models.IdentityPatient {
		if err := m.purgeIdentityFields(ctx); err != nil {
			return err
		}
		m.identity = models.Identity{}
	}

	m.sessionID = ""
	m.transcript = nil
	m.state = StateLoggedOut
	log.Printf("session: logged out")
	return nil
}

// ForceLogout is the watchdog's entry point when the auth token disappears
// past the grace window.
func (m *SessionMachine) ForceLogout() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Logout(ctx); err != nil {
		log.Printf("session: forced logout failed: %v", err)
	}
}

// Stats summarizes machine state for the health endpoint.
func (m *SessionMachine) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"state":      string(m.state),
		"session_id": m.sessionID,
		"messages":   len(m.transcript),
	}
}

func (m *SessionMachine) hasUserMessages() bool {
	for _, msg := range m.transcript {
		if msg.Sender == models.SenderUser {
			return true
		}
	}
	return false
}

// purgeSessionScope removes the session id, selection state and treatment
// state for the current identity.
func (m *SessionMachine) purgeSessionScope(ctx context.Context) error {
	identityKey := m.identity.Key()
	if err := m.kv.Delete(ctx, sessionRecordKey(identityKey)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	_ = m.kv.Delete(ctx, keyCurrentSession)
	_ = m.kv.Delete(ctx, historyKey(identityKey))
	if m.selections != nil {
		return m.selections.ClearIdentity(ctx, identityKey)
	}
	return nil
}

func (m *SessionMachine) purgeIdentityFields(ctx context.Context) error {
	for _, key := range []string{keyIdentityKind, keyIdentityDoctor, keyIdentityPhone, keyIdentityName} {
		if err := m.kv.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// recordHistory appends to the identity's cached chat history, capped at 30
// entries, newest last.
func (m *SessionMachine) recordHistory(ctx context.Context, lastMessage string) {
	entries, _ := m.loadHistory(ctx)
	entries = append(entries, models.ChatHistoryEntry{
		IdentityKey: m.identity.Key(),
		SessionID:   m.sessionID,
		LastMessage: lastMessage,
		LastActive:  time.Now(),
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastActive.Before(entries[j].LastActive)
	})
	if len(entries) > historyCap {
		entries = entries[len(entries)-historyCap:]
	}
	if b, err := json.Marshal(entries); err == nil {
		_ = m.kv.Set(ctx, historyKey(m.identity.Key()), string(b))
	}
}

func (m *SessionMachine) loadHistory(ctx context.Context) ([]models.ChatHistoryEntry, error) {
	raw, err := m.kv.Get(ctx, historyKey(m.identity.Key()))
	if err != nil {
		return nil, err
	}
	var entries []models.ChatHistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *SessionMachine) bumpSessionCount(ctx context.Context) {
	count := 0
	if raw, err := m.kv.Get(ctx, keySessionCount); err == nil {
		_ = json.Unmarshal([]byte(raw), &count)
	}
	count++
	if b, err := json.Marshal(count); err == nil {
		_ = m.kv.Set(ctx, keySessionCount, string(b))
	}
}

// restartAfterDelay re-runs Start once after a short delay, used when a send
// failure indicates the backend lost the session.
func (m *SessionMachine) restartAfterDelay() {
	time.Sleep(restartDelay)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		log.Printf("session: auto-restart failed: %v", err)
	}
}

// isSessionLoss inspects a send failure for signs the backend dropped the
// session.
func isSessionLoss(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"session not found", "session expired", "invalid session"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
