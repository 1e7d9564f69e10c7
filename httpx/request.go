package httpx

import (
	"dqx0.com/go/evhttp/httpx/internal/http1"
)

// DefaultMaxRequestBytes caps an encoded request when Config leaves
// MaxRequestBytes unset.
const DefaultMaxRequestBytes = 8 << 10

// Request is an outbound HTTP/1.1 request as the Client sends it.
//
// Body is sent verbatim; a non-nil Body gets an automatic Content-Length.
// Host, when empty, is taken from the Client configuration.
type Request struct {
	Method string
	Path   string
	Host   string
	Header Header
	Body   []byte
}

// BuildRequest encodes r into its wire form. It fails with
// ErrRequestTooLarge when the result would exceed max bytes (max <= 0
// disables the check); the caller has to shrink the request.
func BuildRequest(r *Request, max int) ([]byte, error) {
	wr := &http1.Request{
		Method: r.Method,
		Target: r.Path,
		Host:   r.Host,
		Body:   r.Body,
	}
	if len(r.Header) > 0 {
		wr.Header = make([]http1.Field, len(r.Header))
		for i, f := range r.Header {
			wr.Header[i] = http1.Field{Name: f.Name, Value: f.Value}
		}
	}
	return http1.AppendRequest(nil, wr, max)
}
