package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/mergington/internal/events"
)

func framed(schemaID uint32, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func signedUpMessage(offset int64, payload []byte) kafka.Message {
	return kafka.Message{
		Topic:     "activity_membership",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("Chess Club"),
		Value:     framed(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeParticipantSignedUp)},
			{Key: "schema_subject", Value: []byte("activity_membership-ParticipantSignedUp")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity":"Chess Club","email":"ada@mergington.edu","occurred_at":"2025-09-01T08:00:00Z"}`)
	reader := &stubReader{messages: []kafka.Message{signedUpMessage(10, payload)}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, zaptest.NewLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeParticipantSignedUp, handler.last.EventType)
	require.Equal(t, "Chess Club", handler.last.Key)
	require.Equal(t, "activity_membership-ParticipantSignedUp", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{signedUpMessage(20, []byte(`{}`))}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, zaptest.NewLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorSkipsFailedMessageAndCommitsLaterOnes(t *testing.T) {
	payload := []byte(`{"activity":"Chess Club","email":"ada@mergington.edu","occurred_at":"2025-09-01T08:00:00Z"}`)
	reader := &stubReader{messages: []kafka.Message{signedUpMessage(40, payload), signedUpMessage(41, payload)}}
	handler := &stubHandler{failAt: map[int64]bool{40: true}}

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_membership", events.TypeParticipantSignedUp))
	err := NewProcessor(reader, handler, zaptest.NewLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 2, handler.calls)
	// Offset 40 is never committed or retried; committing 41 moves the group past it.
	require.Equal(t, []int64{41}, reader.committed)
	require.Equal(t, before+1, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_membership", events.TypeParticipantSignedUp)))
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	missingHeader := signedUpMessage(30, []byte(`{}`))
	missingHeader.Headers = nil
	badMagic := signedUpMessage(31, []byte(`{}`))
	badMagic.Value[0] = 7
	short := signedUpMessage(32, nil)
	short.Value = []byte{0, 1}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_membership"))
	reader := &stubReader{messages: []kafka.Message{missingHeader, badMagic, short}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, zaptest.NewLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
	require.Equal(t, before+3, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_membership")))
}

func TestDecodeMembership(t *testing.T) {
	entry, err := decodeMembership(Message{
		EventType: events.TypeParticipantUnregistered,
		Payload:   []byte(`{"activity":"Drama Club","email":"ella@mergington.edu","occurred_at":"2025-09-01T08:00:00Z"}`),
	})
	require.NoError(t, err)
	require.Equal(t, "Drama Club", entry.Activity)
	require.Equal(t, "ella@mergington.edu", entry.Email)
	require.Equal(t, time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC), entry.OccurredAt.UTC())

	_, err = decodeMembership(Message{EventType: "activity.created", Payload: []byte(`{}`)})
	require.ErrorContains(t, err, "unsupported event type")

	_, err = decodeMembership(Message{EventType: events.TypeParticipantSignedUp, Payload: []byte(`not json`)})
	require.Error(t, err)
}

// stubReader replays messages and then reports cancellation.
type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	committed   []int64
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls  int
	err    error
	failAt map[int64]bool
	last   Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.failAt[msg.Offset] {
		return errors.New("audit insert failed")
	}
	return h.err
}
