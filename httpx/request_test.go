package httpx

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildRequest_GET(t *testing.T) {
	b, err := BuildRequest(&Request{
		Method: "GET",
		Path:   "/graphql",
		Host:   "api.github.com",
		Header: Header{{Name: "User-Agent", Value: "X"}},
	}, 0)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	want := "GET /graphql HTTP/1.1\r\nHost: api.github.com\r\nUser-Agent: X\r\n\r\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestBuildRequest_TooLarge(t *testing.T) {
	_, err := BuildRequest(&Request{
		Method: "POST",
		Path:   "/graphql",
		Host:   "api.github.com",
		Body:   []byte(strings.Repeat("q", DefaultMaxRequestBytes)),
	}, DefaultMaxRequestBytes)
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Fatalf("err=%v", err)
	}
}

const contributionsQuery = `
query($login:String!, $startTime:DateTime) { 
    user(login: $login){
        contributionsCollection(from: $startTime) {
            contributionCalendar {
                weeks {
                    contributionDays {
                        contributionLevel
                    }
                }
            }
        }
    }
}`

func TestQueryBody(t *testing.T) {
	got := QueryBody(contributionsQuery, `{"login": "octocat"}`)
	want := `{"query": "query($login:String!, $startTime:DateTime) { user(login: $login){ ` +
		`contributionsCollection(from: $startTime) { contributionCalendar { weeks { ` +
		`contributionDays { contributionLevel } } } } } }", "variables": {"login": "octocat"}}`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
	if strings.Contains(got, "  ") || strings.Contains(got, "\n") {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
}

func TestQueryBody_Defaults(t *testing.T) {
	if got := QueryBody("  { viewer { login } }\n", ""); got != `{"query": "{ viewer { login } }", "variables": {}}` {
		t.Fatalf("got %s", got)
	}
	if got := QueryBody("", ""); got != `{"query": "", "variables": {}}` {
		t.Fatalf("got %s", got)
	}
}

func TestQueryBody_Collapse(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"edges", "\n  { a }  \n", "{ a }"},
		{"only space", " \n \n", ""},
		{"tab kept", "{\ta\n\n b}", "{\ta b}"},
		{"cr kept", "{ a\r\n}", "{ a\r }"},
		{"multibyte", "héllo \n wörld", "héllo wörld"},
		{"invalid utf8", "a\xff\n\nb\xfe", "a\xff b\xfe"},
	}
	for _, tc := range cases {
		if got := collapseSpace(tc.in); got != tc.want {
			t.Fatalf("%s: collapseSpace(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}
