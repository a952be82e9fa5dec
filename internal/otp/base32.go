package otp

import "strings"

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// DecodeBase32 decodes an RFC 4648 base32 secret into raw key bytes.
// Trailing '=' padding is stripped and input is case-insensitive. Characters outside
// the alphabet are skipped rather than rejected, so spaced or dashed secrets copied
// from authenticator apps still decode. Leftover bits that cannot fill a byte are
// dropped. Empty or fully invalid input yields an empty slice.
func DecodeBase32(s string) []byte {
	s = strings.ToUpper(strings.TrimRight(s, "="))

	out := make([]byte, 0, len(s)*5/8)
	var buf uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(base32Alphabet, s[i])
		if v < 0 {
			continue
		}
		buf = buf<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
			buf &= 1<<bits - 1
		}
	}
	return out
}
