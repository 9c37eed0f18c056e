package jobs

import (
	"context"
	"log"
	"time"

	"github.com/NavalEP/carechat-engine/internal/services"
)

const (
	tokenCheckInterval = 15 * time.Second
	tokenGraceWindow   = 45 * time.Second
	refreshInterval    = 5 * time.Minute
	refreshLeeway      = 10 * time.Minute
)

// AuthWatchdog runs two background loops: a token-presence check that forces
// a logout when the bearer token vanishes from every storage slot for longer
// than the grace window, and a proactive refresh that re-authenticates the
// machine account before the token expires.
type AuthWatchdog struct {
	vault     *services.TokenVault
	api       services.CarePayAPI
	username  string
	password  string
	isRunning bool
	stop      chan struct{}

	missingSince time.Time
	everLoggedIn bool
}

// NewAuthWatchdog creates the watchdog. Empty machine credentials disable the
// refresh loop; the presence check always runs.
func NewAuthWatchdog(vault *services.TokenVault, api services.CarePayAPI, username, password string) *AuthWatchdog {
	return &AuthWatchdog{
		vault:    vault,
		api:      api,
		username: username,
		password: password,
	}
}

// Start begins the watchdog loops.
func (w *AuthWatchdog) Start() {
	if w.isRunning {
		log.Println("Auth watchdog already running")
		return
	}
	w.isRunning = true
	w.stop = make(chan struct{})
	log.Println("Starting auth watchdog...")

	go w.watchTokenPresence()
	if w.username != "" && w.password != "" {
		go w.refreshLoop()
	}
}

// Stop halts both loops.
func (w *AuthWatchdog) Stop() {
	if !w.isRunning {
		return
	}
	w.isRunning = false
	close(w.stop)
	log.Println("Stopping auth watchdog...")
}

// watchTokenPresence polls the vault. A transient miss (one storage slot
// lagging) is tolerated; only a token absent past the grace window triggers
// the forced logout.
func (w *AuthWatchdog) watchTokenPresence() {
	ticker := time.NewTicker(tokenCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		present := w.vault.Present(ctx)
		cancel()

		if present {
			w.missingSince = time.Time{}
			continue
		}

		machine := services.GetSessionMachine()
		if machine == nil || machine.State() == services.StateLoggedOut {
			w.missingSince = time.Time{}
			continue
		}

		if w.missingSince.IsZero() {
			w.missingSince = time.Now()
			log.Println("auth watchdog: token missing, grace window started")
			continue
		}
		if time.Since(w.missingSince) >= tokenGraceWindow {
			log.Println("auth watchdog: token missing past grace window, forcing logout")
			machine.ForceLogout()
			w.missingSince = time.Time{}
		}
	}
}

// refreshLoop re-authenticates the machine account whenever the token is
// absent or inside the expiry leeway. A failed refresh is a soft failure: the
// old token keeps being used until the upstream rejects it. The exception is
// the very first login of the process; if that fails the credentials are
// almost certainly wrong and retrying every interval would only lock the
// account, so the loop drops them and exits.
func (w *AuthWatchdog) refreshLoop() {
	if !w.refresh() && !w.everLoggedIn {
		log.Println("auth watchdog: first login failed, disabling refresh loop")
		w.username, w.password = "", ""
		return
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		if exp, ok := w.vault.ExpiresAt(); ok && time.Until(exp) > refreshLeeway {
			continue
		}
		if !w.refresh() && !w.everLoggedIn {
			log.Println("auth watchdog: first login failed, disabling refresh loop")
			w.username, w.password = "", ""
			return
		}
	}
}

func (w *AuthWatchdog) refresh() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := w.api.Login(ctx, w.username, w.password)
	if err != nil {
		log.Printf("auth watchdog: refresh failed: %v", err)
		return false
	}
	if err := w.vault.Set(ctx, token); err != nil {
		log.Printf("auth watchdog: storing refreshed token failed: %v", err)
		return false
	}
	w.everLoggedIn = true
	log.Println("auth watchdog: token refreshed")
	return true
}
