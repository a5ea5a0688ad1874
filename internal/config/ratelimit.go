package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig parameterises a Redis token bucket.  The same shape serves
// the HTTP middleware (RATE_LIMIT_*) and the per-connection websocket action
// limiter (WS_RATE_LIMIT_*).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // HTTP only: "ip", "user", "ip_user" or "ip_user_route"
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the bucket settings under envPrefix, e.g.
// "RATE_LIMIT" reads RATE_LIMIT_CAPACITY.
func LoadRateLimitConfig(envPrefix string) RateLimitConfig {
	k := func(s string) string { return envPrefix + "_" + s }
	def := RateLimitConfig{
		Enabled:        envBool(k("ENABLED"), true),
		Capacity:       envInt(k("CAPACITY"), 60),
		RefillTokens:   envInt(k("REFILL_TOKENS"), 1),
		RefillInterval: envDur(k("REFILL_INTERVAL"), time.Second),
		TTL:            envDur(k("TTL"), 10*time.Minute),
		KeyStrategy:    envStr(k("KEY_STRATEGY"), "ip_user_route"),
		Prefix:         envStr(k("PREFIX"), "rl"),
		Debug:          envBool(k("DEBUG"), false),
	}
	if b := envInt(k("BURST"), -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur(k("REFILL_EVERY"), 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
