package httpx

import (
	"testing"
	"time"

	"golang.org/x/time/rate"

	"dqx0.com/go/evhttp/httpx/internal/http1"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "example.com"}.withDefaults()
	if cfg.Port != 80 || cfg.ConnectTimeout != defaultConnectTimeout || cfg.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("port=%d connect=%v write=%v", cfg.Port, cfg.ConnectTimeout, cfg.WriteTimeout)
	}
	if cfg.MaxRequestBytes != DefaultMaxRequestBytes || cfg.MaxLineBytes != http1.DefaultMaxLineBytes {
		t.Fatalf("max request=%d max line=%d", cfg.MaxRequestBytes, cfg.MaxLineBytes)
	}
	if cfg.Logger == nil || cfg.Meter == nil || cfg.Resolver == nil {
		t.Fatal("nil defaults")
	}
	nt, ok := cfg.Transport.(*NetTransport)
	if !ok {
		t.Fatalf("transport=%T", cfg.Transport)
	}
	if nt.DialTimeout != cfg.ConnectTimeout || nt.WriteTimeout != cfg.WriteTimeout {
		t.Fatalf("transport not configured: %+v", nt)
	}

	tlsCfg := Config{Host: "example.com", TLS: true, RateLimit: 2}.withDefaults()
	if tlsCfg.Port != 443 || tlsCfg.RateBurst != 1 {
		t.Fatalf("port=%d burst=%d", tlsCfg.Port, tlsCfg.RateBurst)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EVHTTP_PORT", "8443")
	t.Setenv("EVHTTP_TLS", "true")
	t.Setenv("EVHTTP_CONNECT_TIMEOUT", "3s")
	t.Setenv("EVHTTP_WRITE_TIMEOUT", "250ms")
	t.Setenv("EVHTTP_MAX_REQUEST_BYTES", "4096")
	t.Setenv("EVHTTP_MAX_LINE_BYTES", "512")
	t.Setenv("EVHTTP_RATE_LIMIT", "0.5")
	t.Setenv("EVHTTP_RATE_BURST", "2")

	cfg, err := ConfigFromEnv("api.github.com")
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	want := Config{
		Host:            "api.github.com",
		Port:            8443,
		TLS:             true,
		ConnectTimeout:  3 * time.Second,
		WriteTimeout:    250 * time.Millisecond,
		MaxRequestBytes: 4096,
		MaxLineBytes:    512,
		RateLimit:       rate.Limit(0.5),
		RateBurst:       2,
	}
	if cfg.Host != want.Host || cfg.Port != want.Port || cfg.TLS != want.TLS ||
		cfg.ConnectTimeout != want.ConnectTimeout || cfg.WriteTimeout != want.WriteTimeout ||
		cfg.MaxRequestBytes != want.MaxRequestBytes || cfg.MaxLineBytes != want.MaxLineBytes ||
		cfg.RateLimit != want.RateLimit || cfg.RateBurst != want.RateBurst {
		t.Fatalf("got %+v", cfg)
	}
}

func TestConfigFromEnv_Unset(t *testing.T) {
	for _, k := range []string{"EVHTTP_PORT", "EVHTTP_TLS", "EVHTTP_CONNECT_TIMEOUT", "EVHTTP_RATE_LIMIT"} {
		t.Setenv(k, "")
	}
	cfg, err := ConfigFromEnv("h")
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Port != 0 || cfg.TLS || cfg.ConnectTimeout != 0 || cfg.RateLimit != 0 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestConfigFromEnv_Malformed(t *testing.T) {
	cases := map[string]string{
		"EVHTTP_PORT":            "eighty",
		"EVHTTP_TLS":             "maybe",
		"EVHTTP_CONNECT_TIMEOUT": "10",
		"EVHTTP_RATE_LIMIT":      "fast",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := ConfigFromEnv("h"); err == nil {
				t.Fatalf("%s=%q accepted", key, val)
			}
		})
	}
}
