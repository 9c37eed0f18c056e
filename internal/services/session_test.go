package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NavalEP/carechat-engine/internal/models"
	"github.com/NavalEP/carechat-engine/internal/storage"
)

type fakeBotAPI struct {
	stubAPI
	createCalls  atomic.Int32
	detailsCalls atomic.Int32
	nextSession  string
	details      map[string]*models.SessionDetails
	reply        string
	sendErr      error
}

func (f *fakeBotAPI) CreateSession(context.Context) (string, error) {
	f.createCalls.Add(1)
	return f.nextSession, nil
}

func (f *fakeBotAPI) GetSessionDetails(_ context.Context, sessionID string) (*models.SessionDetails, error) {
	f.detailsCalls.Add(1)
	if d, ok := f.details[sessionID]; ok {
		return d, nil
	}
	return nil, assertableError("session not found")
}

func (f *fakeBotAPI) SendMessage(context.Context, string, string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.reply, nil
}

type assertableError string

func (e assertableError) Error() string { return string(e) }

func newTestMachine(api CarePayAPI) (*SessionMachine, storage.KeyValue) {
	kv := storage.NewRedundantStore(storage.NewMemoryStore(), storage.NewMemoryStore(), storage.NewMemoryStore())
	tracker := NewSelectionTracker(kv)
	return NewSessionMachine(kv, api, tracker), kv
}

func storeDoctor(t *testing.T, kv storage.KeyValue) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, keyIdentityKind, models.IdentityDoctor))
	require.NoError(t, kv.Set(ctx, keyIdentityDoctor, "D100"))
}

func storeSessionRecord(t *testing.T, kv storage.KeyValue, sessionID string, expiresAt time.Time) {
	t.Helper()
	record := models.SessionRecord{IdentityKey: "doctor:D100", SessionID: sessionID, ExpiresAt: expiresAt}
	b, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), sessionRecordKey("doctor:D100"), string(b)))
}

func TestStartWithoutIdentityFails(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1"}
	m, _ := newTestMachine(api)

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, StateLoggedOut, m.State())
}

func TestStartRestoresValidSession(t *testing.T) {
	api := &fakeBotAPI{
		nextSession: "NEW1",
		details: map[string]*models.SessionDetails{
			"OLD1": {
				Status: "active",
				History: []models.HistoryTurn{
					{Sender: "agent", Text: "Hello! How can I help?"},
					{Sender: "user", Text: "I need a loan"},
				},
			},
		},
	}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	storeSessionRecord(t, kv, "OLD1", time.Now().Add(24*time.Hour))

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, "OLD1", m.SessionID())
	assert.Len(t, m.Transcript(), 2)
	assert.Equal(t, int32(0), api.createCalls.Load())
}

func TestStartWithExpiredSessionAlwaysCreates(t *testing.T) {
	api := &fakeBotAPI{
		nextSession: "NEW1",
		details:     map[string]*models.SessionDetails{"OLD1": {Status: "active"}},
	}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	storeSessionRecord(t, kv, "OLD1", time.Now().Add(-time.Hour))

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, "NEW1", m.SessionID())
	assert.Equal(t, int32(1), api.createCalls.Load())
	assert.Empty(t, m.Transcript())
}

func TestStartFreshLoginForcesNewSession(t *testing.T) {
	api := &fakeBotAPI{
		nextSession: "NEW1",
		details:     map[string]*models.SessionDetails{"OLD1": {Status: "active"}},
	}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	storeSessionRecord(t, kv, "OLD1", time.Now().Add(24*time.Hour))
	require.NoError(t, kv.Set(context.Background(), keyFreshLogin, "1"))

	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, "NEW1", m.SessionID())
	assert.Equal(t, int32(0), api.detailsCalls.Load())

	// The flag is one-shot: the next load restores.
	_, err := kv.Get(context.Background(), keyFreshLogin)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStartFallsBackToCreateWhenBackendRejects(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1", details: map[string]*models.SessionDetails{}}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	storeSessionRecord(t, kv, "GONE", time.Now().Add(24*time.Hour))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "NEW1", m.SessionID())
	assert.Equal(t, int32(1), api.createCalls.Load())
}

func TestSessionRecordRoundTrip(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1"}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	require.NoError(t, kv.Set(context.Background(), keyFreshLogin, "1"))
	require.NoError(t, m.Start(context.Background()))

	raw, err := kv.Get(context.Background(), sessionRecordKey("doctor:D100"))
	require.NoError(t, err)
	var record models.SessionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Equal(t, "NEW1", record.SessionID)
	assert.Equal(t, "doctor:D100", record.IdentityKey)
	assert.False(t, record.Expired())
}

func TestSendAppendsBothTurns(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1", reply: "Sure, what treatment?"}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	require.NoError(t, kv.Set(context.Background(), keyFreshLogin, "1"))
	require.NoError(t, m.Start(context.Background()))

	agentMsg, err := m.Send(context.Background(), "I need a loan")
	require.NoError(t, err)
	assert.Equal(t, "Sure, what treatment?", agentMsg.Text)

	transcript := m.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, models.SenderUser, transcript[0].Sender)
	assert.Equal(t, models.SenderAgent, transcript[1].Sender)
}

func TestNewInquiryRequiresConfirmationWithUserMessages(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1", reply: "ok"}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	require.NoError(t, kv.Set(context.Background(), keyFreshLogin, "1"))
	require.NoError(t, m.Start(context.Background()))
	_, err := m.Send(context.Background(), "hello")
	require.NoError(t, err)

	err = m.NewInquiry(context.Background(), false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	api.nextSession = "NEW2"
	require.NoError(t, m.NewInquiry(context.Background(), true))
	assert.Equal(t, "NEW2", m.SessionID())
	assert.Empty(t, m.Transcript())
}

func TestLogoutPreservesDoctorIdentity(t *testing.T) {
	api := &fakeBotAPI{nextSession: "NEW1"}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)
	require.NoError(t, kv.Set(context.Background(), keyFreshLogin, "1"))
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, StateLoggedOut, m.State())
	v, err := kv.Get(context.Background(), keyIdentityDoctor)
	require.NoError(t, err)
	assert.Equal(t, "D100", v)
	_, err = kv.Get(context.Background(), sessionRecordKey("doctor:D100"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogoutPurgesPatientIdentity(t *testing.T) {
	ctx := context.Background()
	api := &fakeBotAPI{nextSession: "NEW1"}
	m, kv := newTestMachine(api)

	require.NoError(t, m.SetIdentity(ctx, models.Identity{Kind: models.IdentityPatient, Phone: "9876543210"}))
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Logout(ctx))

	_, err := kv.Get(ctx, keyIdentityPhone)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPatientLoginDisplacesDoctorIdentity(t *testing.T) {
	ctx := context.Background()
	api := &fakeBotAPI{nextSession: "NEW1"}
	m, kv := newTestMachine(api)
	storeDoctor(t, kv)

	require.NoError(t, m.SetIdentity(ctx, models.Identity{Kind: models.IdentityPatient, Phone: "9876543210"}))

	_, err := kv.Get(ctx, keyIdentityDoctor)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	v, err := kv.Get(ctx, keyIdentityPhone)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", v)
}
