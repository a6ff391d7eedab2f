package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/types"
)

// EmissionRecord is one journal row.
type EmissionRecord struct {
	ID           string         `db:"emission_id"`
	Type         string         `db:"event_type"`
	RuleName     string         `db:"rule_name"`
	Context      sql.NullString `db:"context"`
	OriginalType string         `db:"original_type"`
	Payload      string         `db:"payload"`
	EmittedAtMs  int64          `db:"emitted_at_ms"`
}

// EmittedAt returns the publication time.
func (r EmissionRecord) EmittedAt() time.Time {
	return time.UnixMilli(r.EmittedAtMs).UTC()
}

// TypeCount is the number of journaled emissions of one type.
type TypeCount struct {
	Type  string `db:"event_type"`
	Total int64  `db:"total"`
}

// Journal persists derived events.
type Journal struct {
	queries *Queries
	log     zerolog.Logger
}

// NewJournal creates a journal over a migrated database.
func NewJournal(db *sqlx.DB, log zerolog.Logger) (*Journal, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Journal{queries: queries, log: log}, nil
}

// Record stores one emission.
func (j *Journal) Record(ctx context.Context, em types.Emission) error {
	if em.Detail == nil {
		return fmt.Errorf("emission %s has no detail", em.ID)
	}

	payload, err := json.Marshal(em.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode emission %s: %w", em.ID, err)
	}

	var tag sql.NullString
	if first, ok := em.Detail.Context(); ok {
		tag = sql.NullString{String: first, Valid: true}
	}
	var originalType string
	if em.Detail.OriginalEvent != nil {
		originalType = em.Detail.OriginalEvent.Type()
	}

	_, err = j.queries.Exec(ctx, "insert-emission",
		string(em.ID), em.Type, em.Detail.Name, tag, originalType, string(payload), em.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert emission %s: %w", em.ID, err)
	}
	return nil
}

// Listener adapts Record to a bus listener. Write failures are logged;
// a failing journal never blocks event handling.
func (j *Journal) Listener(ctx context.Context) func(types.Emission) {
	return func(em types.Emission) {
		if err := j.Record(ctx, em); err != nil {
			j.log.Error().Err(err).Str("id", string(em.ID)).Msg("journal write failed")
		}
	}
}

// Recent returns the newest emissions first, optionally of one type.
func (j *Journal) Recent(ctx context.Context, eventType string, limit int) ([]EmissionRecord, error) {
	var records []EmissionRecord
	var err error
	if eventType == "" {
		err = j.queries.Select(ctx, "list-emissions", &records, limit)
	} else {
		err = j.queries.Select(ctx, "list-emissions-by-type", &records, eventType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list emissions: %w", err)
	}
	return records, nil
}

// Counts returns the number of emissions per type.
func (j *Journal) Counts(ctx context.Context) ([]TypeCount, error) {
	var counts []TypeCount
	if err := j.queries.Select(ctx, "count-emissions-by-type", &counts); err != nil {
		return nil, fmt.Errorf("failed to count emissions: %w", err)
	}
	return counts, nil
}

// Prune deletes emissions published before cutoff and reports how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.queries.Exec(ctx, "delete-emissions-before", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune emissions: %w", err)
	}
	return res.RowsAffected()
}
