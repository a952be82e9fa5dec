package checkin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totpattend/internal/attendance"
	"totpattend/internal/metrics"
	"totpattend/internal/otp"
	"totpattend/internal/queue"
	"totpattend/internal/roster"
)

const demoSecret = "JBSWY3DPEHPK3PXP"

var serverTime = time.Unix(1700000000, 0)

// countingStore wraps MemoryStore and counts every store call.
type countingStore struct {
	*attendance.MemoryStore
	calls     atomic.Int32
	rosterErr error
}

func (c *countingStore) ListRoster(ctx context.Context) ([]roster.Entry, error) {
	c.calls.Add(1)
	if c.rosterErr != nil {
		return nil, c.rosterErr
	}
	return c.MemoryStore.ListRoster(ctx)
}

func (c *countingStore) GetAttendance(ctx context.Context, userID, meetingID string) (*attendance.Record, error) {
	c.calls.Add(1)
	return c.MemoryStore.GetAttendance(ctx, userID, meetingID)
}

type slowRoster struct{}

func (slowRoster) Get(ctx context.Context) (*roster.Snapshot, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func currentCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := otp.GenerateAt(secret, at, otp.DefaultStep, 6)
	require.NoError(t, err)
	return code
}

func newFixture(t *testing.T, entries ...roster.Entry) (*Service, *countingStore, *queue.InMemory, *metrics.Metrics) {
	t.Helper()
	if entries == nil {
		entries = []roster.Entry{{ID: "u1", Name: "Ayu", Secret: demoSecret}}
	}
	st := &countingStore{MemoryStore: attendance.NewMemoryStore(entries)}
	q := queue.NewInMemory(16)
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(
		roster.NewCache(st, 0),
		attendance.NewRecorder(st),
		otp.NewMatcher(),
		WithEvents(q),
		WithMetrics(m),
		WithLogger(discard()),
		WithClock(func() time.Time { return serverTime }),
	)
	return svc, st, q, m
}

func TestValidate_InsertedThenUpdated(t *testing.T) {
	svc, st, _, m := newFixture(t)
	ctx := context.Background()
	token := currentCode(t, demoSecret, serverTime)

	res, err := svc.Validate(ctx, token, "m1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusInserted, res.Status)
	assert.Equal(t, "u1", res.User.ID)

	res, err = svc.Validate(ctx, token, "m1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusUpdated, res.Status)

	rows, err := st.ListAttendance(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Validations.WithLabelValues("ok")))
}

func TestValidate_PublishesEvent(t *testing.T) {
	svc, _, q, _ := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Validate(ctx, currentCode(t, demoSecret, serverTime), "m1")
	require.NoError(t, err)

	out, err := q.Consume(ctx)
	require.NoError(t, err)
	evt, err := queue.DecodeAttendance(<-out)
	require.NoError(t, err)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, "Ayu", evt.UserName)
	assert.Equal(t, "m1", evt.MeetingID)
	assert.Equal(t, "inserted", evt.Status)
	assert.True(t, evt.At.Equal(serverTime))
}

func TestValidate_DriftWindow(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Validate(ctx, currentCode(t, demoSecret, serverTime.Add(-30*time.Second)), "m1")
	assert.NoError(t, err, "previous step accepted")

	_, err = svc.Validate(ctx, currentCode(t, demoSecret, serverTime.Add(-60*time.Second)), "m2")
	assert.ErrorIs(t, err, ErrNoMatch, "two steps old rejected")
}

func TestValidate_NoMatch(t *testing.T) {
	svc, st, _, m := newFixture(t, roster.Entry{ID: "u1", Name: "Ayu", Secret: "GEZDGNBVGY3TQOJQ"})
	token := "000000"
	if token == currentCode(t, "GEZDGNBVGY3TQOJQ", serverTime) {
		t.Skip("fixture secret happens to produce 000000")
	}

	_, err := svc.Validate(context.Background(), token, "m1")
	assert.ErrorIs(t, err, ErrNoMatch)
	rows, _ := st.ListAttendance(context.Background(), "m1")
	assert.Empty(t, rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("no_match")))
}

func TestValidate_EmptyRoster(t *testing.T) {
	svc, _, _, _ := newFixture(t, []roster.Entry{}...)
	_, err := svc.Validate(context.Background(), "123456", "m1")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestValidate_MissingFieldsTouchNoStore(t *testing.T) {
	svc, st, _, _ := newFixture(t)

	_, err := svc.Validate(context.Background(), "", "m1")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.Validate(context.Background(), "123456", "")
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, int32(0), st.calls.Load())
}

func TestValidate_MeetingIDTooLong(t *testing.T) {
	svc, st, _, m := newFixture(t)
	token := currentCode(t, demoSecret, serverTime)

	_, err := svc.Validate(context.Background(), token, strings.Repeat("m", MaxMeetingIDLen+1))
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.ErrorIs(t, err, ErrMeetingIDTooLong)
	assert.Equal(t, int32(0), st.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("bad_request")))

	res, err := svc.Validate(context.Background(), token, strings.Repeat("m", MaxMeetingIDLen))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusInserted, res.Status)
}

func TestValidate_StoreFailureIsGeneric(t *testing.T) {
	svc, st, _, _ := newFixture(t)
	st.rosterErr = errors.New("pq: password authentication failed for user attendance")

	_, err := svc.Validate(context.Background(), "123456", "m1")
	assert.ErrorIs(t, err, ErrStore)
	assert.NotContains(t, err.Error(), "password")
}

func TestValidate_Timeout(t *testing.T) {
	svc := NewService(slowRoster{}, attendance.NewRecorder(attendance.NewMemoryStore(nil)), otp.NewMatcher(),
		WithTimeout(20*time.Millisecond), WithLogger(discard()))

	_, err := svc.Validate(context.Background(), "123456", "m1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestValidate_FirstRosterEntryWins(t *testing.T) {
	svc, _, _, _ := newFixture(t,
		roster.Entry{ID: "u0", Name: "No secret"},
		roster.Entry{ID: "u1", Name: "Ayu", Secret: demoSecret},
		roster.Entry{ID: "u2", Name: "Duplicate", Secret: demoSecret},
	)
	res, err := svc.Validate(context.Background(), currentCode(t, demoSecret, serverTime), "m1")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
}
