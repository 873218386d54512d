package repository

import (
	"context"
	"time"

	"outreach_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivityEntry is one row of the append-only prospect timeline.
type ActivityEntry struct {
	ID              uuid.UUID
	ProspectID      *uuid.UUID
	EventType       string
	Source          string
	ExternalEventID string
	Fingerprint     string
	ObservedAt      time.Time
	Payload         []byte
	CreatedAt       time.Time
}

// recordEventTx appends the event to the activity log inside the caller's
// transaction. Returns false when the event was seen before: exact match
// on external event id, or same content fingerprint within the trailing
// dedup window for id-less poll events.
func recordEventTx(ctx context.Context, tx pgx.Tx, prospectID uuid.UUID, event domain.LifecycleEvent) (bool, error) {
	if event.ExternalEventID != "" {
		tag, err := tx.Exec(ctx, `
			INSERT INTO OUT_activity_log (prospect_id, event_type, source, external_event_id, fingerprint, observed_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (prospect_id, external_event_id) DO NOTHING
		`, prospectID, event.Type, event.Source, event.ExternalEventID, event.FingerprintFor(prospectID), event.ObservedAt, event.Payload)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	}

	var seen bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM OUT_activity_log
			WHERE prospect_id = $1 AND fingerprint = $2 AND observed_at >= $3
		)
	`, prospectID, event.FingerprintFor(prospectID), event.ObservedAt.Add(-fingerprintWindow)).Scan(&seen)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO OUT_activity_log (prospect_id, event_type, source, external_event_id, fingerprint, observed_at, payload)
		VALUES ($1, $2, $3, NULL, $4, $5, $6)
	`, prospectID, event.Type, event.Source, event.FingerprintFor(prospectID), event.ObservedAt, event.Payload)
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordEvent appends an event to a prospect's timeline without touching
// prospect state. Used for events that do not match a valid transition.
// Returns false when the event was already recorded.
func (r *Repository) RecordEvent(ctx context.Context, prospectID uuid.UUID, event domain.LifecycleEvent) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	recorded, err := recordEventTx(ctx, tx, prospectID, event)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return recorded, nil
}

// RecordOrphanEvent appends an event that matched no known prospect.
// Kept for duplicate-delivery investigations; never mutates prospect state.
func (r *Repository) RecordOrphanEvent(ctx context.Context, event domain.LifecycleEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO OUT_activity_log (prospect_id, event_type, source, external_event_id, fingerprint, observed_at, payload)
		VALUES (NULL, $1, $2, NULLIF($3, ''), $4, $5, $6)
	`, event.Type, event.Source, event.ExternalEventID, event.Fingerprint(), event.ObservedAt, event.Payload)
	return err
}

// Timeline returns the activity entries for a prospect, newest first.
func (r *Repository) Timeline(ctx context.Context, prospectID uuid.UUID, limit int) ([]ActivityEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prospect_id, event_type, source, COALESCE(external_event_id, ''), fingerprint, observed_at, payload, created_at
		FROM OUT_activity_log
		WHERE prospect_id = $1
		ORDER BY observed_at DESC
		LIMIT $2
	`, prospectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var entry ActivityEntry
		if err := rows.Scan(
			&entry.ID, &entry.ProspectID, &entry.EventType, &entry.Source,
			&entry.ExternalEventID, &entry.Fingerprint, &entry.ObservedAt,
			&entry.Payload, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
