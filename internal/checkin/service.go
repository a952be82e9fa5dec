// Package checkin validates a presented TOTP token against the roster and records
// the matching user's attendance for a meeting.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"totpattend/internal/attendance"
	"totpattend/internal/metrics"
	"totpattend/internal/otp"
	"totpattend/internal/queue"
	"totpattend/internal/roster"
)

// Sentinel errors for the HTTP layer to map onto status codes.
var (
	ErrBadRequest = errors.New("token and pertemuanId are required")
	ErrNoMatch    = errors.New("invalid or expired token")
	ErrStore      = errors.New("store unavailable")
	ErrTimeout    = errors.New("validation timed out")

	ErrMeetingIDTooLong error = badRequest(fmt.Sprintf("pertemuanId must be at most %d characters", MaxMeetingIDLen))
)

// MaxMeetingIDLen matches the meeting_id column width of the SQL stores.
const MaxMeetingIDLen = 128

// badRequest is a client input error with its own message that still matches
// ErrBadRequest.
type badRequest string

func (e badRequest) Error() string { return string(e) }

func (e badRequest) Is(target error) bool { return target == ErrBadRequest }

// Result is a successful validation.
type Result struct {
	Status attendance.Status
	User   roster.Entry
}

// RosterLoader returns the roster snapshot to match against.
type RosterLoader interface {
	Get(ctx context.Context) (*roster.Snapshot, error)
}

// Recorder upserts attendance.
type Recorder interface {
	Record(ctx context.Context, userID, meetingID string, at time.Time) (attendance.Status, error)
}

// Service validates tokens and records attendance.
type Service struct {
	roster   RosterLoader
	recorder Recorder
	matcher  otp.Matcher
	events   queue.Queue
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes an event per recorded attendance.
func WithEvents(q queue.Queue) Option { return func(s *Service) { s.events = q } }

// WithMetrics observes outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithTimeout bounds each Validate call, store round trips included.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a validation service.
func NewService(rl RosterLoader, rec Recorder, m otp.Matcher, opts ...Option) *Service {
	s := &Service{
		roster:   rl,
		recorder: rec,
		matcher:  m,
		logger:   slog.Default(),
		timeout:  5 * time.Second,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate finds the roster entry that generated token and records it as attending
// meetingID. Missing or oversized inputs fail with ErrBadRequest before any store
// access.
func (s *Service) Validate(ctx context.Context, token, meetingID string) (res Result, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveValidation(outcome(err), time.Since(start)) }()

	if token == "" || meetingID == "" {
		return Result{}, ErrBadRequest
	}
	if utf8.RuneCountInString(meetingID) > MaxMeetingIDLen {
		return Result{}, ErrMeetingIDTooLong
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := s.roster.Get(ctx)
	if err != nil {
		return Result{}, s.storeErr(ctx, "fetch roster", err)
	}
	if s.metrics != nil {
		s.metrics.RosterSize.Set(float64(snap.Len()))
	}

	at := s.now()
	idx, ok := s.matcher.Match(token, snap.Keys(), at)
	if !ok {
		s.logger.Info("token rejected", "meeting_id", meetingID, "roster_size", snap.Len())
		return Result{}, ErrNoMatch
	}
	user := snap.Entry(idx)

	status, err := s.recorder.Record(ctx, user.ID, meetingID, at)
	if err != nil {
		return Result{}, s.storeErr(ctx, "record attendance", err)
	}
	s.logger.Info("attendance recorded", "user_id", user.ID, "meeting_id", meetingID, "status", status)

	s.publish(ctx, queue.AttendanceEvent{
		UserID:    user.ID,
		UserName:  user.Name,
		MeetingID: meetingID,
		Status:    string(status),
		At:        at.UTC(),
	})
	return Result{Status: status, User: user}, nil
}

func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("validation timed out", "op", op, "err", err)
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	s.logger.Error("store failure", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, ErrStore)
}

func (s *Service) publish(ctx context.Context, evt queue.AttendanceEvent) {
	if s.events == nil {
		return
	}
	msg, err := queue.NewAttendanceMessage(evt)
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("queue publish failed", "user_id", evt.UserID, "meeting_id", evt.MeetingID, "err", err)
		if s.metrics != nil {
			s.metrics.QueueFailure.Inc()
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
