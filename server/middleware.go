package server

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// authConfig guards the tester endpoints. With nothing configured they stay open,
// which matches a relay bound to localhost next to its control panel.
type authConfig struct {
	username string
	password string
	token    string
}

func (c authConfig) enabled() bool { return (c.username != "" && c.password != "") || c.token != "" }

func loadAuthConfig() authConfig {
	cfg := authConfig{
		username: os.Getenv("ADMIN_USERNAME"),
		password: os.Getenv("ADMIN_PASSWORD"),
		token:    os.Getenv("ADMIN_TOKEN"),
	}
	if !cfg.enabled() {
		slog.Warn("admin authentication not configured; /test-command and /audit are open", slog.String("component", "http"))
	}
	return cfg
}

// adminAuth accepts X-Admin-Token first, then Basic auth.
func adminAuth(next http.Handler, cfg authConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if cfg.token != "" {
			if tok := r.Header.Get("X-Admin-Token"); tok != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(cfg.token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		if cfg.username != "" && cfg.password != "" {
			if u, p, ok := r.BasicAuth(); ok &&
				subtle.ConstantTimeCompare([]byte(u), []byte(cfg.username)) == 1 &&
				subtle.ConstantTimeCompare([]byte(p), []byte(cfg.password)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="rolemaster-relay"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		slog.Warn("admin auth failed", slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr), slog.String("component", "http"))
	})
}

// rateLimiter is a per-IP sliding window. Tester requests reach the real executor,
// so they are limited even when authenticated.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func loadRateLimiter() *rateLimiter {
	rl := &rateLimiter{limit: 20, window: time.Minute, now: time.Now, hits: map[string][]time.Time{}}
	if os.Getenv("RATE_LIMIT_ENABLED") == "0" {
		rl.limit = 0
	}
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_REQUESTS_PER_IP")); err == nil && n > 0 && rl.limit > 0 {
		rl.limit = n
	}
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); err == nil && n > 0 {
		rl.window = time.Duration(n) * time.Second
	}
	return rl
}

// allow records a request from ip. A zero limit disables limiting.
func (rl *rateLimiter) allow(ip string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	kept := rl.hits[ip][:0]
	for _, t := range rl.hits[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	// Forget idle visitors so the map does not grow without bound.
	for other, ts := range rl.hits {
		if other != ip && (len(ts) == 0 || ts[len(ts)-1].Before(cutoff)) {
			delete(rl.hits, other)
		}
	}
	if len(kept) >= rl.limit {
		rl.hits[ip] = kept
		return false
	}
	rl.hits[ip] = append(kept, now)
	return true
}

func rateLimit(next http.Handler, rl *rateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			http.Error(w, "Too Many Requests - rate limit exceeded", http.StatusTooManyRequests)
			slog.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path), slog.String("component", "http"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP takes the first X-Forwarded-For hop when present, else RemoteAddr, without port.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ = strings.Cut(fwd, ",")
		ip = strings.TrimSpace(ip)
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return strings.Trim(ip, "[]")
}

// corsConfig lets the browser-based control panel call the tester endpoint.
type corsConfig struct {
	origins    []string
	permissive bool
}

func loadCORSConfig() corsConfig {
	mode := strings.ToLower(os.Getenv("ENV"))
	cfg := corsConfig{permissive: mode == "" || mode == "dev" || mode == "development"}
	if v := os.Getenv("CORS_PERMISSIVE"); v != "" {
		cfg.permissive = v == "1" || v == "true"
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.origins = append(cfg.origins, o)
		}
	}
	return cfg
}

func (c corsConfig) allowed(origin string) bool {
	for _, a := range c.origins {
		if origin == a {
			return true
		}
		if domain, ok := strings.CutPrefix(a, "*."); ok && strings.HasSuffix(origin, "."+domain) {
			return true
		}
	}
	return false
}

func withCORS(next http.Handler, cfg corsConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case cfg.permissive:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && cfg.allowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token, X-Correlation-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
