// Command evhttp-get issues one GET, or a GraphQL POST when -query is
// given, and prints the response events as they arrive.
//
//	evhttp-get -host api.github.com -tls -path /graphql \
//	    -H "Authorization: bearer $TOKEN" -query '{ viewer { login } }'
//
// Connection settings not given as flags are read from the EVHTTP_*
// environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dqx0.com/go/evhttp/httpx"
	"dqx0.com/go/evhttp/internal/obs"
)

type headerFlags httpx.Header

func (h *headerFlags) String() string {
	parts := make([]string, len(*h))
	for i, f := range *h {
		parts[i] = f.Name + ": " + f.Value
	}
	return strings.Join(parts, ", ")
}

func (h *headerFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q: want \"Name: value\"", s)
	}
	*h = append(*h, httpx.HeaderField{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one request and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evhttp-get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		host    = fs.String("host", "", "server host name (required)")
		port    = fs.Int("port", 0, "server port (default 80, or 443 with -tls)")
		useTLS  = fs.Bool("tls", false, "connect with TLS")
		path    = fs.String("path", "/", "request path")
		query   = fs.String("query", "", "GraphQL query; switches to POST")
		vars    = fs.String("vars", "", "GraphQL variables as a JSON object")
		timeout = fs.Duration("timeout", 30*time.Second, "overall time limit")
		verbose = fs.Bool("v", false, "debug logging")
		headers headerFlags
	)
	fs.Var(&headers, "H", "request header \"Name: value\" (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *host == "" {
		fs.Usage()
		return 2
	}

	zl := newZap(*verbose, stderr)
	defer func() { _ = zl.Sync() }()
	lg := obs.NewZapLogger(zl, "evhttp")
	if !*verbose {
		lg.Min = obs.Info
	}

	cfg, err := httpx.ConfigFromEnv(*host)
	if err != nil {
		zl.Error("config", zap.Error(err))
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *useTLS {
		cfg.TLS = true
	}
	cfg.Logger = lg
	cfg.RequestIDHeader = "X-Request-ID"

	c, err := httpx.NewClient(cfg)
	if err != nil {
		zl.Error("client", zap.Error(err))
		return 1
	}
	c.OnStatus(func(code int, reason string) {
		fmt.Fprintf(stdout, "%d %s\n", code, reason)
	})
	c.OnHeader(func(name, value string) {
		fmt.Fprintf(stdout, "%s: %s\n", name, value)
	})
	started := false
	c.OnBodyData(func(p []byte) {
		if !started {
			fmt.Fprintln(stdout)
			started = true
		}
		_, _ = stdout.Write(p)
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	hdr := httpx.Header(headers)
	if *query != "" {
		if hdr.Get("Content-Type") == "" {
			hdr.Add("Content-Type", "application/json")
		}
		err = c.Post(ctx, *path, []byte(httpx.QueryBody(*query, *vars)), hdr)
	} else {
		err = c.Get(ctx, *path, hdr)
	}
	if err != nil {
		zl.Error("request", zap.Error(err))
		return 1
	}
	werr := c.Wait(ctx)
	if started {
		fmt.Fprintln(stdout)
	}
	if derr := c.Disconnect(); derr != nil {
		zl.Warn("disconnect", zap.Error(derr))
	}
	if werr != nil {
		zl.Error("response", zap.Error(werr))
		return 1
	}
	return 0
}

// newZap builds the process logger writing to w.
func newZap(verbose bool, w io.Writer) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	enc := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	if verbose {
		enc = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), cfg.Level)
	return zap.New(core)
}
