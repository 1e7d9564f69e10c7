package httpx

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Trace carries minimal W3C trace context for propagation.
// TraceID is 32-hex, SpanID is 16-hex. Flags are 2-hex (e.g. "01").
type Trace struct {
	TraceID string
	SpanID  string
	Flags   string
}

// traceparent returns the header value for a child span of tr, or false
// if tr is not a valid trace context.
func (tr Trace) traceparent() (string, bool) {
	if len(tr.TraceID) != 32 || !isHex(tr.TraceID) || tr.TraceID == strings.Repeat("0", 32) {
		return "", false
	}
	flags := tr.Flags
	if flags == "" {
		flags = "01"
	}
	if len(flags) != 2 || !isHex(flags) {
		return "", false
	}
	return "00-" + strings.ToLower(tr.TraceID) + "-" + genSpanID() + "-" + strings.ToLower(flags), true
}

func genSpanID() string {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err == nil && b != [8]byte{} {
			return hex.EncodeToString(b[:])
		}
	}
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			continue
		}
		return false
	}
	return true
}
