package otp

import (
	"crypto/subtle"
	"time"
)

// Matcher finds which key produced a submitted token, tolerating clock drift of
// Drift steps on either side of the current step.
type Matcher struct {
	Step   time.Duration
	Drift  int
	Digits int
}

// NewMatcher returns a Matcher with the RFC 6238 defaults: 30s step, ±1 step, 6 digits.
func NewMatcher() Matcher {
	return Matcher{Step: DefaultStep, Drift: 1, Digits: 6}
}

// Window returns the accepted counters for now in ascending order.
// Counters below zero are omitted.
func (m Matcher) Window(now time.Time) []uint64 {
	ctr := Counter(now, m.Step)
	drift := int64(m.Drift)
	if drift < 0 {
		drift = 0
	}
	out := make([]uint64, 0, 2*drift+1)
	for c := ctr - drift; c <= ctr+drift; c++ {
		if c < 0 {
			continue
		}
		out = append(out, uint64(c))
	}
	return out
}

// Match scans keys in order and, for each key, the drift window in ascending order.
// It returns the index of the first key whose code equals token exactly.
// Empty keys are never matched.
func (m Matcher) Match(token string, keys [][]byte, now time.Time) (int, bool) {
	digits := m.Digits
	if digits == 0 {
		digits = 6
	}
	if len(token) != digits {
		return -1, false
	}
	window := m.Window(now)
	for i, key := range keys {
		if len(key) == 0 {
			continue
		}
		for _, c := range window {
			code, err := Generate(key, c, digits)
			if err != nil {
				break
			}
			if subtle.ConstantTimeCompare([]byte(code), []byte(token)) == 1 {
				return i, true
			}
		}
	}
	return -1, false
}
