package httpx

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"dqx0.com/go/evhttp/httpx/internal/http1"
	"dqx0.com/go/evhttp/internal/obs"
)

// Config describes one Client connection. Zero fields take defaults.
type Config struct {
	// Host is the server name: used for resolution, the Host header and
	// TLS SNI.
	Host string
	// Port defaults to 80, or 443 when TLS is set.
	Port int
	TLS  bool
	// TLSConfig is cloned per connection; ServerName defaults to Host.
	TLSConfig *tls.Config

	// ConnectTimeout bounds resolution plus connection setup for each
	// Get/Post that has to connect.
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// MaxRequestBytes is a hard cap on an encoded request.
	MaxRequestBytes int
	// MaxLineBytes bounds a single status or header line.
	MaxLineBytes   int
	ReadBufferSize int

	// RateLimit throttles Get/Post in requests per second; zero disables
	// throttling. Over-limit requests fail with ErrRateLimited.
	RateLimit rate.Limit
	RateBurst int

	// RequestIDHeader, if set, names a header carrying the request ID.
	RequestIDHeader string

	Transport Transport
	Resolver  Resolver
	Logger    obs.Logger
	Meter     obs.Meter
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 80
		if c.TLS {
			c.Port = 443
		}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = http1.DefaultMaxLineBytes
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.Logger == nil {
		c.Logger = obs.NopLogger{}
	}
	if c.Meter == nil {
		c.Meter = obs.NopMeter{}
	}
	if c.Resolver == nil {
		c.Resolver = NetResolver{}
	}
	if c.Transport == nil {
		c.Transport = &NetTransport{
			DialTimeout:    c.ConnectTimeout,
			WriteTimeout:   c.WriteTimeout,
			ReadBufferSize: c.ReadBufferSize,
			TLSConfig:      c.TLSConfig,
			Logger:         c.Logger,
			Meter:          c.Meter,
		}
	}
	return c
}

func (c Config) validate() error {
	if c.Host == "" {
		return errors.New("httpx: empty host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("httpx: invalid port %d", c.Port)
	}
	return nil
}

// ConfigFromEnv returns a Config for host with overrides from the
// environment:
//
//	EVHTTP_PORT, EVHTTP_TLS, EVHTTP_CONNECT_TIMEOUT, EVHTTP_WRITE_TIMEOUT,
//	EVHTTP_MAX_REQUEST_BYTES, EVHTTP_MAX_LINE_BYTES, EVHTTP_RATE_LIMIT,
//	EVHTTP_RATE_BURST
//
// Unset variables leave the default in place; malformed ones are an
// error.
func ConfigFromEnv(host string) (Config, error) {
	cfg := Config{Host: host}
	var err error
	if cfg.Port, err = envInt("EVHTTP_PORT"); err != nil {
		return cfg, err
	}
	if v := firstEnv("EVHTTP_TLS"); v != "" {
		if cfg.TLS, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("httpx: EVHTTP_TLS: %w", err)
		}
	}
	if cfg.ConnectTimeout, err = envDuration("EVHTTP_CONNECT_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = envDuration("EVHTTP_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.MaxRequestBytes, err = envInt("EVHTTP_MAX_REQUEST_BYTES"); err != nil {
		return cfg, err
	}
	if cfg.MaxLineBytes, err = envInt("EVHTTP_MAX_LINE_BYTES"); err != nil {
		return cfg, err
	}
	if v := firstEnv("EVHTTP_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("httpx: EVHTTP_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = rate.Limit(f)
	}
	if cfg.RateBurst, err = envInt("EVHTTP_RATE_BURST"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envInt(key string) (int, error) {
	v := firstEnv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("httpx: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := firstEnv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("httpx: %s: %w", key, err)
	}
	return d, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
