// Package feed keeps a short list of the latest check-ins per meeting for the
// admin "recent" view.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"totpattend/internal/queue"
)

// Feed stores recent attendance events per meeting, newest first.
type Feed interface {
	Push(ctx context.Context, evt queue.AttendanceEvent) error
	Recent(ctx context.Context, meetingID string, limit int) ([]queue.AttendanceEvent, error)
}

// Memory is an in-process Feed.
type Memory struct {
	size int
	mu   sync.Mutex
	byID map[string][]queue.AttendanceEvent
}

// NewMemory keeps up to size events per meeting.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 50
	}
	return &Memory{size: size, byID: make(map[string][]queue.AttendanceEvent)}
}

func (m *Memory) Push(ctx context.Context, evt queue.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]queue.AttendanceEvent{evt}, m.byID[evt.MeetingID]...)
	if len(list) > m.size {
		list = list[:m.size]
	}
	m.byID[evt.MeetingID] = list
	return nil
}

func (m *Memory) Recent(ctx context.Context, meetingID string, limit int) ([]queue.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.byID[meetingID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]queue.AttendanceEvent, limit)
	copy(out, list[:limit])
	return out, nil
}

// RedisFeed stores each meeting's events in a capped list.
type RedisFeed struct {
	client *redis.Client
	prefix string
	size   int
}

// NewRedisFeed keeps up to size events per meeting under prefix+meetingID.
func NewRedisFeed(client *redis.Client, prefix string, size int) *RedisFeed {
	if prefix == "" {
		prefix = "attendance:recent:"
	}
	if size <= 0 {
		size = 50
	}
	return &RedisFeed{client: client, prefix: prefix, size: size}
}

func (f *RedisFeed) Push(ctx context.Context, evt queue.AttendanceEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	key := f.prefix + evt.MeetingID
	_, err = f.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, b)
		p.LTrim(ctx, key, 0, int64(f.size-1))
		return nil
	})
	return err
}

func (f *RedisFeed) Recent(ctx context.Context, meetingID string, limit int) ([]queue.AttendanceEvent, error) {
	if limit <= 0 || limit > f.size {
		limit = f.size
	}
	raw, err := f.client.LRange(ctx, f.prefix+meetingID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]queue.AttendanceEvent, 0, len(raw))
	for _, s := range raw {
		var evt queue.AttendanceEvent
		if err := json.Unmarshal([]byte(s), &evt); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}
