package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NavalEP/carechat-engine/internal/storage"
)

// TokenVault holds the upstream bearer token. Reads are served from an
// in-memory copy so the per-request token func never touches storage; writes
// go through the redundant store so the token survives a restart.
type TokenVault struct {
	mu     sync.RWMutex
	kv     storage.KeyValue
	cached string
}

// NewTokenVault creates a vault over the given store, warming the in-memory
// copy from whatever token survived the last run.
func NewTokenVault(kv storage.KeyValue) *TokenVault {
	v := &TokenVault{kv: kv}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if token, err := kv.Get(ctx, keyAuthToken); err == nil {
		v.cached = token
	}
	return v
}

// Token returns the current bearer token, or "". Safe for use as the
// CarePayClient token func.
func (v *TokenVault) Token() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cached
}

// Set stores a fresh token in memory and in every storage slot.
func (v *TokenVault) Set(ctx context.Context, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.kv.Set(ctx, keyAuthToken, token); err != nil {
		return err
	}
	v.cached = token
	return nil
}

// Clear removes the token everywhere.
func (v *TokenVault) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cached = ""
	if err := v.kv.Delete(ctx, keyAuthToken); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Present reports whether any storage slot still holds a token. The watchdog
// polls this; a token missing from all slots past the grace window forces a
// logout.
func (v *TokenVault) Present(ctx context.Context) bool {
	if _, err := v.kv.Get(ctx, keyAuthToken); err == nil {
		return true
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cached != ""
}

// ExpiresAt extracts the expiry claim from the current token without
// verifying the signature; verification is the upstream's job, we only need
// the deadline for proactive refresh. The second result is false when no
// token is held or it carries no expiry.
func (v *TokenVault) ExpiresAt() (time.Time, bool) {
	token := v.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
