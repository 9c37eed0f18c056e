package models

import "time"

// Selection records which option the user picked for one agent message and
// whether further picks are locked. The lock is monotonic: once set it stays
// set for the lifetime of the session.
type Selection struct {
	IdentityKey string    `json:"identity_key"`
	SessionID   string    `json:"session_id"`
	MessageID   string    `json:"message_id"`
	Value       string    `json:"value"`
	IsLocked    bool      `json:"is_locked"`
	ChosenAt    time.Time `json:"chosen_at"`
}

// TreatmentChoice is the parallel map for treatment-name picks. Free-text
// "other" names are stored verbatim.
type TreatmentChoice struct {
	IdentityKey string    `json:"identity_key"`
	SessionID   string    `json:"session_id"`
	MessageID   string    `json:"message_id"`
	Name        string    `json:"name"`
	ChosenAt    time.Time `json:"chosen_at"`
}
