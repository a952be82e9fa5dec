package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totpattend/internal/queue"
)

func TestMemory_NewestFirstAndCapped(t *testing.T) {
	f := NewMemory(2)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, f.Push(ctx, queue.AttendanceEvent{UserID: id, MeetingID: "m1"}))
	}
	require.NoError(t, f.Push(ctx, queue.AttendanceEvent{UserID: "u9", MeetingID: "m2"}))

	got, err := f.Recent(ctx, "m1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u3", got[0].UserID)
	assert.Equal(t, "u2", got[1].UserID)

	got, err = f.Recent(ctx, "m1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.Recent(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
