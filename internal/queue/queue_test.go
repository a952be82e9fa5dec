package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceMessage_RoundTrip(t *testing.T) {
	evt := AttendanceEvent{
		UserID:    "u1",
		UserName:  "Ayu",
		MeetingID: "m1",
		Status:    "inserted",
		At:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	msg, err := NewAttendanceMessage(evt)
	require.NoError(t, err)
	assert.Equal(t, TypeAttendanceRecorded, msg.Type)

	got, err := DecodeAttendance(msg)
	require.NoError(t, err)
	assert.Equal(t, evt, got)
}

func TestDecodeAttendance_WrongType(t *testing.T) {
	_, err := DecodeAttendance(Message{Type: "other", Body: []byte(`{}`)})
	assert.Error(t, err)
}

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "a"}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b"}))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a", (<-out).Type)
	assert.Equal(t, "b", (<-out).Type)

	cancel()
	for range out {
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "blocked"}), context.DeadlineExceeded)
}
