package httpx_test

import (
	"context"
	"fmt"

	"dqx0.com/go/evhttp/httpx"
)

// ExampleHeader shows basic header operations.
func ExampleHeader() {
	h := httpx.Header{}
	h.Add("X-Foo", "a")
	h.Add("X-Foo", "b")
	h.Set("Content-Type", "application/json")
	fmt.Println(h.Get("x-foo")) // case-insensitive lookup
	fmt.Println(len(h.Values("X-Foo")))
	h.Del("X-Foo")
	fmt.Println(h.Get("X-Foo"))
	// Output:
	// a
	// 2
	//
}

// ExampleQueryBody embeds an indented GraphQL query in a request body.
func ExampleQueryBody() {
	q := "query {\n  viewer {\n    login\n  }\n}\n"
	fmt.Println(httpx.QueryBody(q, `{"n": 3}`))
	// Output:
	// {"query": "query { viewer { login } }", "variables": {"n": 3}}
}

// ExampleBuildRequest shows the bytes sent for a POST.
func ExampleBuildRequest() {
	b, err := httpx.BuildRequest(&httpx.Request{
		Method: "POST",
		Path:   "/graphql",
		Host:   "api.github.com",
		Header: httpx.Header{{Name: "User-Agent", Value: "PicoW"}},
		Body:   []byte("{}"),
	}, 0)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%q\n", b)
	// Output:
	// "POST /graphql HTTP/1.1\r\nHost: api.github.com\r\nUser-Agent: PicoW\r\nContent-Length: 2\r\n\r\n{}"
}

// ExampleWithRequestID attaches a request ID used for logging and the
// optional request ID header.
func ExampleWithRequestID() {
	ctx := httpx.WithRequestID(context.Background(), "req-42")
	id, _ := httpx.RequestIDFrom(ctx)
	fmt.Println(id)
	// Output:
	// req-42
}
