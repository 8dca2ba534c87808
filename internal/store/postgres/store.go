// Package postgres persists activities in PostgreSQL and records roster events in a transactional outbox.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
)

//go:embed schema.sql
var schemaDDL string

// Store provides Postgres-backed persistence for activities and outbox events.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the activities, outbox, and outbox_dlq tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

// Count implements domain.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count)
	return count, err
}

// InsertMany implements domain.Store. Names that already exist are skipped.
func (s *Store) InsertMany(ctx context.Context, activities []domain.Activity) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (name, description, schedule, max_participants, participants)
        VALUES ($1,$2,$3,$4,$5) ON CONFLICT (name) DO NOTHING`

	for _, a := range activities {
		participants := a.Participants
		if participants == nil {
			participants = []string{}
		}
		if _, err = tx.Exec(ctx, stmt, a.Name, a.Description, a.Schedule, a.MaxParticipants, participants); err != nil {
			return fmt.Errorf("insert %q: %w", a.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// Find implements domain.Store.
func (s *Store) Find(ctx context.Context, name string) (*domain.Activity, error) {
	const query = `SELECT name, description, schedule, max_participants, participants
        FROM activities WHERE name=$1`

	var a domain.Activity
	err := s.pool.QueryRow(ctx, query, name).Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &a.Participants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List implements domain.Store.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, description, schedule, max_participants, participants
        FROM activities ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &a.Participants); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// AddParticipant appends email when absent and records a participant.signed_up event in the same transaction.
func (s *Store) AddParticipant(ctx context.Context, name, email string) (bool, error) {
	const stmt = `UPDATE activities
        SET participants = array_append(participants, $2), updated_at = $3
        WHERE name = $1 AND NOT ($2 = ANY(participants))`

	now := s.now()
	return s.mutate(ctx, name, stmt, []any{name, email, now}, events.TypeParticipantSignedUp, events.ParticipantSignedUp{
		Activity:   name,
		Email:      email,
		OccurredAt: now,
	})
}

// RemoveParticipant drops email and records a participant.unregistered event in the same transaction.
func (s *Store) RemoveParticipant(ctx context.Context, name, email string) (bool, error) {
	const stmt = `UPDATE activities
        SET participants = array_remove(participants, $2), updated_at = $3
        WHERE name = $1 AND $2 = ANY(participants)`

	now := s.now()
	return s.mutate(ctx, name, stmt, []any{name, email, now}, events.TypeParticipantUnregistered, events.ParticipantUnregistered{
		Activity:   name,
		Email:      email,
		OccurredAt: now,
	})
}

func (s *Store) mutate(ctx context.Context, name, stmt string, args []any, eventType string, payload any) (changed bool, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !changed {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err = insertOutbox(ctx, tx, name, eventType, payload); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activityName, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activityName,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		activityName,
		body,
		fmt.Sprintf("%s:%s:%s", activityName, eventType, uuid.NewString()),
	)
	return err
}

// EventMetadata describes how to route an outbox event. Subjects follow the topic-record naming strategy
// so both membership events can share one topic.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeParticipantSignedUp: {
		Topic:         "activity_membership",
		SchemaSubject: "activity_membership-ParticipantSignedUp",
	},
	events.TypeParticipantUnregistered: {
		Topic:         "activity_membership",
		SchemaSubject: "activity_membership-ParticipantUnregistered",
	},
}
