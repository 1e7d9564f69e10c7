// Package httpx provides a small event-driven HTTP/1.1 client bound to a
// single host and a single connection, aimed at constrained callers that
// want response events as bytes arrive rather than a buffered response.
//
// Highlights
//   - Incremental response parsing: status, header and body events are
//     produced from network reads of any size, including reads that
//     split a status or header line; the body is never buffered.
//   - Connection lifecycle: resolve once, connect on demand (plain or
//     TLS), reuse while open, tear down on any transport error or peer
//     close, graceful close with abortive fallback.
//   - Request building with a hard size cap and header validation, plus
//     a helper for GraphQL request bodies.
//   - Pluggable Transport and Resolver; Logger and Meter hooks.
//
// Not supported: chunked or gzip decoding, redirects, cookies, retries,
// pipelining and HTTP/2.
//
// Quick start:
//
//	c, err := httpx.NewClient(httpx.Config{Host: "api.github.com", TLS: true})
//	if err != nil { log.Fatal(err) }
//	c.OnStatus(func(code int, reason string) { fmt.Println(code, reason) })
//	c.OnBodyData(func(p []byte) { os.Stdout.Write(p) })
//	body := httpx.QueryBody(query, `{"login": "octocat"}`)
//	hdr := httpx.Header{{Name: "User-Agent", Value: "evhttp"}}
//	if err := c.Post(ctx, "/graphql", []byte(body), hdr); err != nil { log.Fatal(err) }
//	if err := c.Wait(ctx); err != nil { log.Fatal(err) }
package httpx
