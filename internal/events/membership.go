// Package events defines the roster change payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeParticipantSignedUp     = "participant.signed_up"
	TypeParticipantUnregistered = "participant.unregistered"
)

// ParticipantSignedUp is emitted after an email is appended to an activity roster.
type ParticipantSignedUp struct {
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParticipantUnregistered is emitted after an email is removed from an activity roster.
type ParticipantUnregistered struct {
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}
