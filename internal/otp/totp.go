package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// DefaultStep is the RFC 6238 time step.
const DefaultStep = 30 * time.Second

var (
	// ErrInvalidKey is returned when the HMAC key is empty.
	ErrInvalidKey = errors.New("otp: empty key")
	// ErrInvalidDigits is returned when the requested code length is outside 1..10.
	ErrInvalidDigits = errors.New("otp: digits must be between 1 and 10")
)

var pow10 = [...]uint64{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000, 10000000000}

// Generate computes the HOTP value (RFC 4226, HMAC-SHA1) of counter, which is the
// RFC 6238 TOTP code when counter is a time step.
func Generate(key []byte, counter uint64, digits int) (string, error) {
	if len(key) == 0 {
		return "", ErrInvalidKey
	}
	if digits < 1 || digits >= len(pow10) {
		return "", ErrInvalidDigits
	}

	var msg [8]byte
	binary.BigEndian.PutUint32(msg[:4], uint32(counter>>32))
	binary.BigEndian.PutUint32(msg[4:], uint32(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF

	return fmt.Sprintf("%0*d", digits, uint64(value)%pow10[digits]), nil
}

// Counter returns floor(unix seconds / step) for t.
func Counter(t time.Time, step time.Duration) int64 {
	if step <= 0 {
		step = DefaultStep
	}
	secs := int64(step / time.Second)
	if secs <= 0 {
		secs = 1
	}
	unix := t.Unix()
	c := unix / secs
	if unix < 0 && unix%secs != 0 {
		c--
	}
	return c
}

// GenerateAt returns the code for a base32 secret at time t.
func GenerateAt(secret string, t time.Time, step time.Duration, digits int) (string, error) {
	c := Counter(t, step)
	if c < 0 {
		return "", fmt.Errorf("otp: time %s precedes the epoch", t)
	}
	return Generate(DecodeBase32(secret), uint64(c), digits)
}
