package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"totpattend/internal/roster"
)

type pairKey struct{ user, meeting string }

// MemoryStore is an in-process roster and attendance store for dev and tests.
type MemoryStore struct {
	mu      sync.Mutex
	roster  []roster.Entry
	records map[pairKey]*Record
}

// NewMemoryStore creates a store holding the given roster.
func NewMemoryStore(entries []roster.Entry) *MemoryStore {
	m := &MemoryStore{records: make(map[pairKey]*Record)}
	m.roster = append(m.roster, entries...)
	return m
}

// LoadRosterFile reads a JSON array of roster entries.
func LoadRosterFile(path string) ([]roster.Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster seed: %w", err)
	}
	var entries []roster.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode roster seed: %w", err)
	}
	return entries, nil
}

// ListRoster returns a copy of the roster in insertion order.
func (m *MemoryStore) ListRoster(ctx context.Context) ([]roster.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.Entry, len(m.roster))
	copy(out, m.roster)
	return out, nil
}

// GetAttendance returns the row for the pair, or nil.
func (m *MemoryStore) GetAttendance(ctx context.Context, userID, meetingID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[pairKey{userID, meetingID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// InsertAttendance stores rec unless a row for the pair exists.
func (m *MemoryStore) InsertAttendance(ctx context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{rec.UserID, rec.MeetingID}
	if _, ok := m.records[k]; ok {
		return false, nil
	}
	cp := rec
	m.records[k] = &cp
	return true, nil
}

// UpdateAttendance marks the row attending at the given time.
func (m *MemoryStore) UpdateAttendance(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			rec.IsAttending = true
			rec.AttendedAt = at
			return nil
		}
	}
	return fmt.Errorf("attendance %s not found", id)
}

// ListAttendance returns rows for a meeting ordered by attendance time.
func (m *MemoryStore) ListAttendance(ctx context.Context, meetingID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for k, rec := range m.records {
		if k.meeting == meetingID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttendedAt.Equal(out[j].AttendedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AttendedAt.Before(out[j].AttendedAt)
	})
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
