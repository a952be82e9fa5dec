package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totpattend/internal/queue"
)

func TestRun_StoresAttendanceEvents(t *testing.T) {
	msgs := make(chan queue.Message, 4)
	good, err := queue.NewAttendanceMessage(queue.AttendanceEvent{UserID: "u1", MeetingID: "m1", Status: "inserted"})
	require.NoError(t, err)

	msgs <- good
	msgs <- queue.Message{Type: "other", Body: []byte(`{}`)}
	msgs <- queue.Message{Type: queue.TypeAttendanceRecorded, Body: []byte(`not json`)}
	close(msgs)

	f := NewMemory(10)
	n := Run(context.Background(), msgs, f, nil)
	assert.Equal(t, 1, n)

	got, err := f.Recent(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, Run(ctx, make(chan queue.Message), NewMemory(1), nil))
}
