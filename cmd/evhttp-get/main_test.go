package main

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serverHostPort(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split %q: %v", srv.URL, err)
	}
	return host, port
}

func TestRun_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()
	host, port := serverHostPort(t, srv)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-host", host, "-port", port, "-path", "/ping", "-H", "Authorization: bearer t"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"200 OK\n", "X-Token: bearer t\n", "\npong\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestRun_GraphQLPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		_, _ = w.Write(b)
	}))
	defer srv.Close()
	host, port := serverHostPort(t, srv)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-host", host, "-port", port, "-path", "/graphql", "-query", "{\n  viewer { login }\n}"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "X-Content-Type: application/json\n") {
		t.Fatalf("out=%q", out)
	}
	if !strings.Contains(out, `{"query": "{ viewer { login } }", "variables": {}}`) {
		t.Fatalf("out=%q", out)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, closedPort, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no host", nil, 2},
		{"bad header", []string{"-host", "h", "-H", "novalue"}, 2},
		{"unknown flag", []string{"-nope"}, 2},
		{"refused", []string{"-host", "127.0.0.1", "-port", closedPort, "-timeout", "5s"}, 1},
	}
	for _, tc := range cases {
		var stdout, stderr bytes.Buffer
		if got := run(tc.args, &stdout, &stderr); got != tc.want {
			t.Fatalf("%s: exit=%d, want %d (stderr=%s)", tc.name, got, tc.want, stderr.String())
		}
	}
}
