package outbox

import "example.com/mergington/internal/events"

const participantSignedUpSchema = `{
  "type": "object",
  "title": "ParticipantSignedUp",
  "properties": {
    "activity": {"type": "string"},
    "email": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity", "email", "occurred_at"],
  "additionalProperties": false
}`

const participantUnregisteredSchema = `{
  "type": "object",
  "title": "ParticipantUnregistered",
  "properties": {
    "activity": {"type": "string"},
    "email": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity", "email", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to its JSON schema.
var schemaCatalog = map[string]string{
	events.TypeParticipantSignedUp:     participantSignedUpSchema,
	events.TypeParticipantUnregistered: participantUnregisteredSchema,
}
