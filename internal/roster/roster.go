package roster

import (
	"context"

	"totpattend/internal/otp"
)

// Entry is one enrolled user and their base32 TOTP secret.
type Entry struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	NRP    *string `json:"nrp,omitempty"`
	Secret string  `json:"secret"`
}

// Source fetches the full roster in a stable order.
type Source interface {
	ListRoster(ctx context.Context) ([]Entry, error)
}

// Snapshot is an immutable roster with secrets decoded once.
type Snapshot struct {
	entries []Entry
	keys    [][]byte
}

// NewSnapshot decodes every secret. Entries with an empty or undecodable secret keep
// an empty key and can never match.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries: make([]Entry, len(entries)),
		keys:    make([][]byte, len(entries)),
	}
	copy(s.entries, entries)
	for i, e := range s.entries {
		if e.Secret == "" {
			continue
		}
		s.keys[i] = otp.DecodeBase32(e.Secret)
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Keys returns the decoded keys in roster order. Callers must not modify them.
func (s *Snapshot) Keys() [][]byte { return s.keys }

// Entry returns the i-th entry.
func (s *Snapshot) Entry(i int) Entry { return s.entries[i] }
