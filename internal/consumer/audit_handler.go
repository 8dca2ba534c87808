package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/events"
)

// AuditHandler appends roster events to the membership_audit table.
// Redelivered records are ignored by the (topic, partition, record_offset) key.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle implements Handler.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	entry, err := decodeMembership(msg)
	if err != nil {
		return err
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO membership_audit (event_type, activity_name, email, occurred_at, schema_id, topic, partition, record_offset, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		entry.Activity,
		entry.Email,
		entry.OccurredAt,
		msg.SchemaID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

type membershipEntry struct {
	Activity   string
	Email      string
	OccurredAt time.Time
}

func decodeMembership(msg Message) (membershipEntry, error) {
	switch msg.EventType {
	case events.TypeParticipantSignedUp:
		var evt events.ParticipantSignedUp
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return membershipEntry{}, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		return membershipEntry{Activity: evt.Activity, Email: evt.Email, OccurredAt: evt.OccurredAt}, nil
	case events.TypeParticipantUnregistered:
		var evt events.ParticipantUnregistered
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return membershipEntry{}, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		return membershipEntry{Activity: evt.Activity, Email: evt.Email, OccurredAt: evt.OccurredAt}, nil
	default:
		return membershipEntry{}, fmt.Errorf("unsupported event type %q", msg.EventType)
	}
}
