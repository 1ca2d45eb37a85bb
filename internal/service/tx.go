package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

const (
	readAttempts = 3
	readBackoff  = 50 * time.Millisecond
)

// retryRead retries an idempotent read on storage errors with a linear
// backoff. Writes never go through here.
func retryRead(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		if err = fn(); err == nil || !transitoire(err) {
			return err
		}
		if attempt == readAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("lecture de stock en échec, nouvel essai")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * readBackoff):
		}
	}
	return err
}

// transitoire excludes errors that a retry cannot fix.
func transitoire(err error) bool {
	return !errors.Is(err, gorm.ErrRecordNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// notFound turns gorm.ErrRecordNotFound into a NotFoundError.
func notFound(err error, entite string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entite: entite, ID: id}
	}
	return err
}

func utcNow() time.Time { return time.Now().UTC() }

// publier hands committed mutations to the audit sink. A sink failure never
// undoes a committed transaction; it is logged and dropped.
func publier(ctx context.Context, sink audit.Sink, events ...audit.Event) {
	if sink == nil || len(events) == 0 {
		return
	}
	if err := sink.Publish(ctx, events...); err != nil {
		log.Warn().Err(err).Int("events", len(events)).Msg("audit: publication impossible")
	}
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalide(field, "identifiant invalide")
	}
	return id, nil
}

func parseUUIDPtr(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := parseUUID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

const dateLayout = "2006-01-02"

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, invalide(field, "date attendue au format AAAA-MM-JJ")
	}
	return t, nil
}

func debutJour(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
