package http1

import (
	"errors"
	"strings"
	"testing"
)

func TestAppendRequest_GET(t *testing.T) {
	r := &Request{
		Method: "GET",
		Target: "/graphql",
		Host:   "api.github.com",
		Header: []Field{{Name: "User-Agent", Value: "X"}},
	}
	b, err := AppendRequest(nil, r, 0)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	want := "GET /graphql HTTP/1.1\r\nHost: api.github.com\r\nUser-Agent: X\r\n\r\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestAppendRequest_POSTAddsContentLength(t *testing.T) {
	r := &Request{
		Method: "POST",
		Target: "/graphql",
		Host:   "api.github.com",
		Header: []Field{
			{Name: "User-Agent", Value: "PicoW"},
			{Name: "Content-Length", Value: "999"},
			{Name: "Authorization", Value: "bearer t"},
		},
		Body: []byte(`{"query": "q"}`),
	}
	b, err := AppendRequest(nil, r, 0)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	want := "POST /graphql HTTP/1.1\r\n" +
		"Host: api.github.com\r\n" +
		"User-Agent: PicoW\r\n" +
		"Authorization: bearer t\r\n" +
		"Content-Length: 14\r\n" +
		"\r\n" +
		`{"query": "q"}`
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestAppendRequest_EmptyBody(t *testing.T) {
	b, err := AppendRequest(nil, &Request{Method: "POST", Target: "/", Host: "h", Body: []byte{}}, 0)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	if !strings.Contains(string(b), "Content-Length: 0\r\n\r\n") {
		t.Fatalf("got %q", b)
	}
}

func TestAppendRequest_HostOverride(t *testing.T) {
	r := &Request{
		Method: "GET",
		Target: "/",
		Host:   "10.0.0.1",
		Header: []Field{{Name: "Accept", Value: "*/*"}, {Name: "host", Value: "example.com:8080"}},
	}
	b, err := AppendRequest(nil, r, 0)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	want := "GET / HTTP/1.1\r\nAccept: */*\r\nhost: example.com:8080\r\n\r\n"
	if string(b) != want {
		t.Fatalf("got %q", b)
	}
}

func TestAppendRequest_TooLarge(t *testing.T) {
	r := &Request{Method: "POST", Target: "/", Host: "h", Body: []byte(strings.Repeat("x", 100))}
	full, err := AppendRequest(nil, r, 0)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	if _, err := AppendRequest(nil, r, len(full)); err != nil {
		t.Fatalf("exact fit rejected: %v", err)
	}
	dst := []byte("keep")
	out, err := AppendRequest(dst, r, len(full)-1)
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Fatalf("err=%v, want ErrRequestTooLarge", err)
	}
	if string(out) != "keep" {
		t.Fatalf("dst modified: %q", out)
	}
}

func TestAppendRequest_Invalid(t *testing.T) {
	cases := []struct {
		name string
		r    Request
		want error
	}{
		{"method", Request{Method: "GE T", Target: "/", Host: "h"}, ErrInvalidMethod},
		{"empty target", Request{Method: "GET", Target: "", Host: "h"}, ErrInvalidTarget},
		{"target CRLF", Request{Method: "GET", Target: "/a\r\nX: y", Host: "h"}, ErrInvalidTarget},
		{"header name", Request{Method: "GET", Target: "/", Host: "h", Header: []Field{{Name: "Bad Name", Value: "v"}}}, ErrInvalidHeader},
		{"header value", Request{Method: "GET", Target: "/", Host: "h", Header: []Field{{Name: "X", Value: "a\r\nInjected: 1"}}}, ErrInvalidHeader},
		{"host", Request{Method: "GET", Target: "/", Host: "bad host"}, ErrInvalidHeader},
	}
	for _, tc := range cases {
		if _, err := AppendRequest(nil, &tc.r, 0); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v, want %v", tc.name, err, tc.want)
		}
	}
}
