package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/mergington/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"activity":"Chess Club"}`)
	frame := encodeWireFormat(42, payload)

	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(nil, producer, registry, zaptest.NewLogger(t), 10*time.Millisecond, 5)

	messages := []Message{
		membershipMessage(1, events.TypeParticipantSignedUp, "Chess Club"),
		membershipMessage(2, events.TypeParticipantSignedUp, "Drama Club"),
		membershipMessage(3, events.TypeParticipantUnregistered, "Chess Club"),
	}

	require.NoError(t, dispatcher.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "activity_membership", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 3)
	require.Len(t, registry.calls, 2, "one registry lookup per subject")

	first := producer.writes[0].messages[0]
	require.Equal(t, []byte("Chess Club"), first.Key)
	require.Equal(t, uint32(21), binary.BigEndian.Uint32(first.Value[1:5]))
	require.Contains(t, first.Headers, kafka.Header{Key: "event_type", Value: []byte(events.TypeParticipantSignedUp)})

	require.NoError(t, dispatcher.deliver(context.Background(), messages[:1]))
	require.Len(t, registry.calls, 2, "cached schema id should be reused across batches")
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 9}
	dispatcher := NewDispatcher(nil, producer, registry, zaptest.NewLogger(t), time.Second, 5)

	err := dispatcher.deliver(context.Background(), []Message{membershipMessage(1, "participant.renamed", "Chess Club")})
	require.ErrorContains(t, err, "no schema metadata for event_type=participant.renamed")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesProducerError(t *testing.T) {
	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(nil, producer, &stubRegistry{id: 3}, zaptest.NewLogger(t), time.Second, 5)

	err := dispatcher.deliver(context.Background(), []Message{membershipMessage(1, events.TypeParticipantSignedUp, "Chess Club")})
	require.ErrorContains(t, err, "kafka write failed")
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40401}`))
		case r.Method == http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			registered = body["schema"]
			_, _ = w.Write([]byte(`{"id":17}`))
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "activity_membership-ParticipantSignedUp", participantSignedUpSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.JSONEq(t, participantSignedUpSchema, registered)
}

func TestSchemaRegistryReturnsLatestVersion(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		require.Equal(t, "/subjects/activity_membership-ParticipantUnregistered/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":5,"version":2}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_membership-ParticipantUnregistered", participantUnregisteredSchema)
	require.NoError(t, err)
	require.Equal(t, 5, id)
	require.Zero(t, posts)
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("registry down"))
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "subject", "{}")
	require.ErrorContains(t, err, "registry down")
}

func membershipMessage(id int64, eventType, activity string) Message {
	payload, _ := json.Marshal(events.ParticipantSignedUp{
		Activity:   activity,
		Email:      "ada@mergington.edu",
		OccurredAt: time.Date(2025, time.September, 1, 15, 30, 0, 0, time.UTC),
	})
	subject := "activity_membership-ParticipantSignedUp"
	if eventType == events.TypeParticipantUnregistered {
		subject = "activity_membership-ParticipantUnregistered"
	}
	return Message{
		EventID:       id,
		AggregateType: "activity",
		AggregateID:   activity,
		EventType:     eventType,
		Topic:         "activity_membership",
		SchemaSubject: subject,
		PartitionKey:  activity,
		Payload:       payload,
	}
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	return s.id, nil
}
