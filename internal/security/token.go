// Package security provisions the shared-secret token that authorizes
// privileged commands. The token is generated once when the agent starts,
// handed to the desktop tool out-of-band, and never changes for the
// process lifetime.
package security

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// GenerateToken returns a fresh random 64-bit token.
func GenerateToken() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate token: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// FormatToken renders a token the way tools and config files carry it:
// fixed-width hexadecimal with an 0x prefix.
func FormatToken(token int64) string {
	return fmt.Sprintf("0x%016x", uint64(token))
}

// ParseToken reads a token in either the 0x-hex form produced by
// FormatToken or plain decimal.
func ParseToken(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty token")
	}
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("parse token %q: %w", s, err)
		}
		return int64(v), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token %q: %w", s, err)
	}
	return v, nil
}
