// Package audit defines the event sink the engine notifies after every
// committed mutation. Capturing and storing audit logs happens elsewhere.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action: "created" | "updated"
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
)

// Event is a before/after snapshot of one entity. Avant is nil on creation.
type Event struct {
	Entite        string         `json:"entite"`
	EntiteID      uuid.UUID      `json:"entite_id"`
	Action        Action         `json:"action"`
	UtilisateurID uuid.UUID      `json:"utilisateur_id"`
	Avant         map[string]any `json:"avant,omitempty"`
	Apres         map[string]any `json:"apres,omitempty"`
	At            time.Time      `json:"at"`
}

// Sink receives events after commit. Publish must not block the caller for long
// and its failure never rolls back the mutation.
type Sink interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// LogSink writes events to the structured logger.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, events ...Event) error {
	for _, e := range events {
		log.Info().
			Str("entite", e.Entite).
			Str("entite_id", e.EntiteID.String()).
			Str("action", string(e.Action)).
			Str("utilisateur_id", e.UtilisateurID.String()).
			Interface("avant", e.Avant).
			Interface("apres", e.Apres).
			Time("at", e.At).
			Msg("audit")
	}
	return nil
}

// Recorder collects events in memory; used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Of returns the recorded events for one entity type.
func (r *Recorder) Of(entite string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Entite == entite {
			out = append(out, e)
		}
	}
	return out
}
