package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key joins a prefix and parts with ':' after trimming separators from each part.
// Empty parts are kept as empty segments so positional meaning is preserved.
func Key(prefix string, parts ...string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 8*len(parts))
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(p, ":", "_"))
	}
	return b.String()
}

// Digest returns the first 16 hex chars of sha256(s). Used to redact keys in logs and metrics.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
