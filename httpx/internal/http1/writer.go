package http1

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	ErrRequestTooLarge = errors.New("http1: request exceeds size limit")
	ErrInvalidMethod   = errors.New("http1: invalid method")
	ErrInvalidTarget   = errors.New("http1: invalid request target")
	ErrInvalidHeader   = errors.New("http1: invalid header field")
)

// Field is one request header line.
type Field struct {
	Name  string
	Value string
}

// Request describes an outbound request.
type Request struct {
	Method string
	Target string
	Host   string
	Header []Field
	// Body is sent verbatim. A non-nil Body, even an empty one, gets a
	// Content-Length header.
	Body []byte
}

// AppendRequest appends the wire form of r to dst:
//
//	METHOD SP target SP HTTP/1.1 CRLF
//	Host: host CRLF
//	caller headers, in order CRLF
//	Content-Length: len(body) CRLF   (when Body != nil)
//	CRLF
//	body
//
// A caller supplied Host replaces the default one in place. Caller
// supplied Content-Length is ignored. If max > 0 and the encoded request
// would be longer than max bytes, nothing is appended and
// ErrRequestTooLarge is returned.
func AppendRequest(dst []byte, r *Request, max int) ([]byte, error) {
	if !httpguts.ValidHeaderFieldName(r.Method) {
		return dst, fmt.Errorf("%w: %q", ErrInvalidMethod, r.Method)
	}
	if !validTarget(r.Target) {
		return dst, fmt.Errorf("%w: %q", ErrInvalidTarget, r.Target)
	}
	hasHost := false
	for _, f := range r.Header {
		if !httpguts.ValidHeaderFieldName(f.Name) || !httpguts.ValidHeaderFieldValue(f.Value) {
			return dst, fmt.Errorf("%w: %q", ErrInvalidHeader, f.Name)
		}
		if strings.EqualFold(f.Name, "Host") {
			hasHost = true
		}
	}
	if !hasHost && !httpguts.ValidHostHeader(r.Host) {
		return dst, fmt.Errorf("%w: host %q", ErrInvalidHeader, r.Host)
	}

	var cl string
	if r.Body != nil {
		cl = strconv.Itoa(len(r.Body))
	}

	// Size everything up front so an oversized request never reaches dst.
	n := len(r.Method) + 1 + len(r.Target) + len(" HTTP/1.1\r\n")
	if !hasHost {
		n += len("Host: ") + len(r.Host) + 2
	}
	for _, f := range r.Header {
		if skipField(f.Name) {
			continue
		}
		n += len(f.Name) + 2 + len(f.Value) + 2
	}
	if r.Body != nil {
		n += len("Content-Length: ") + len(cl) + 2
	}
	n += 2 + len(r.Body)
	if max > 0 && n > max {
		return dst, fmt.Errorf("%w: %d bytes, limit %d", ErrRequestTooLarge, n, max)
	}

	if cap(dst)-len(dst) < n {
		grown := make([]byte, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}
	dst = append(dst, r.Method...)
	dst = append(dst, ' ')
	dst = append(dst, r.Target...)
	dst = append(dst, " HTTP/1.1\r\n"...)
	if !hasHost {
		dst = appendField(dst, "Host", r.Host)
	}
	for _, f := range r.Header {
		if skipField(f.Name) {
			continue
		}
		dst = appendField(dst, f.Name, f.Value)
	}
	if r.Body != nil {
		dst = appendField(dst, "Content-Length", cl)
	}
	dst = append(dst, "\r\n"...)
	dst = append(dst, r.Body...)
	return dst, nil
}

func appendField(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, ": "...)
	dst = append(dst, value...)
	return append(dst, "\r\n"...)
}

func skipField(name string) bool {
	return strings.EqualFold(name, "Content-Length")
}

// validTarget rejects empty targets and any byte that would end or split
// the request line.
func validTarget(t string) bool {
	if t == "" {
		return false
	}
	for i := 0; i < len(t); i++ {
		if c := t[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}
