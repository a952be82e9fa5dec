package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status reports what Record did to the store.
type Status string

const (
	StatusInserted Status = "inserted"
	StatusUpdated  Status = "updated"
)

// Record is one user's attendance for one meeting.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MeetingID   string    `json:"meeting_id"`
	IsAttending bool      `json:"is_attending"`
	AttendedAt  time.Time `json:"attended_at"`
}

// Store persists attendance rows. InsertAttendance must be insert-if-absent on
// (UserID, MeetingID) and report whether a row was written.
type Store interface {
	GetAttendance(ctx context.Context, userID, meetingID string) (*Record, error)
	InsertAttendance(ctx context.Context, rec Record) (bool, error)
	UpdateAttendance(ctx context.Context, id string, at time.Time) error
	ListAttendance(ctx context.Context, meetingID string) ([]Record, error)
}

// Recorder upserts attendance rows, keeping one row per (user, meeting).
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record marks userID as attending meetingID at the given time. The first call for
// a pair inserts; later calls refresh the flag and timestamp. Concurrent calls for the
// same pair produce exactly one insert: losers of the insert race fall through to update.
func (r *Recorder) Record(ctx context.Context, userID, meetingID string, at time.Time) (Status, error) {
	if userID == "" || meetingID == "" {
		return "", errors.New("user and meeting required")
	}
	at = at.UTC()

	existing, err := r.store.GetAttendance(ctx, userID, meetingID)
	if err != nil {
		return "", fmt.Errorf("get attendance: %w", err)
	}
	if existing != nil {
		return r.update(ctx, existing.ID, at)
	}

	inserted, err := r.store.InsertAttendance(ctx, Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		MeetingID:   meetingID,
		IsAttending: true,
		AttendedAt:  at,
	})
	if err != nil {
		return "", fmt.Errorf("insert attendance: %w", err)
	}
	if inserted {
		return StatusInserted, nil
	}

	existing, err = r.store.GetAttendance(ctx, userID, meetingID)
	if err != nil {
		return "", fmt.Errorf("get attendance after conflict: %w", err)
	}
	if existing == nil {
		return "", errors.New("attendance row missing after insert conflict")
	}
	return r.update(ctx, existing.ID, at)
}

// List returns all rows for a meeting ordered by attendance time.
func (r *Recorder) List(ctx context.Context, meetingID string) ([]Record, error) {
	if meetingID == "" {
		return nil, errors.New("meeting required")
	}
	return r.store.ListAttendance(ctx, meetingID)
}

func (r *Recorder) update(ctx context.Context, id string, at time.Time) (Status, error) {
	if err := r.store.UpdateAttendance(ctx, id, at); err != nil {
		return "", fmt.Errorf("update attendance: %w", err)
	}
	return StatusUpdated, nil
}
