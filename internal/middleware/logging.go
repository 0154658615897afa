package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"tubeplayer/internal/logging"
)

var log = logging.For("http")

// LoggingConfig holds configuration for the access log.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// QuietPaths are path prefixes whose GET and HEAD requests are not
	// logged. Health probes and the status and watcher polls land here.
	QuietPaths []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP when present.
	TrustProxyHeaders bool
	// SlowRequest logs a warning for requests slower than this. Zero
	// disables the warning.
	SlowRequest time.Duration
}

// DefaultLoggingConfig keeps the log to control actions and catalog edits.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		QuietPaths: []string{
			"/health", "/healthz", "/livez",
			"/api/player/status", "/api/watchers/",
		},
		TrustProxyHeaders: true,
		SlowRequest:       5 * time.Second,
	}
}

// accessEntry is one line of the access log. Fields follow the W3C Extended
// Log Format:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent) cs(Referer)
type accessEntry struct {
	at        time.Time
	client    string
	method    string
	stem      string
	query     string
	status    int
	bytes     int64
	taken     time.Duration
	userAgent string
	referer   string
}

func (e accessEntry) String() string {
	return fmt.Sprintf("%s %s %s %s %s %s %d %d %d %s %s",
		e.at.Format("2006-01-02"),
		e.at.Format("15:04:05"),
		orDash(e.client),
		orDash(e.method),
		orDash(e.stem),
		orDash(e.query),
		e.status,
		e.bytes,
		e.taken.Milliseconds(),
		orDash(quoteW3C(e.userAgent)),
		orDash(e.referer),
	)
}

// Logger returns the access log middleware.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			taken := time.Since(start)

			entry := accessEntry{
				at:        start.UTC(),
				client:    sanitizeLogField(config.clientAddr(r)),
				method:    sanitizeLogField(r.Method),
				stem:      sanitizeLogField(r.URL.Path),
				query:     sanitizeLogField(r.URL.RawQuery),
				status:    rec.status,
				bytes:     rec.written,
				taken:     taken,
				userAgent: sanitizeLogField(r.Header.Get("User-Agent")),
				referer:   sanitizeLogField(r.Header.Get("Referer")),
			}
			logging.Printf("%s", entry)

			if config.SlowRequest > 0 && taken > config.SlowRequest {
				log.Warn("slow request: %s %s took %v", entry.method, entry.stem, taken.Round(time.Millisecond))
			}
		})
	}
}

func (c LoggingConfig) skips(r *http.Request) bool {
	if hasAnyPrefix(r.URL.Path, c.SkipPaths) {
		return true
	}
	quiet := r.Method == http.MethodGet || r.Method == http.MethodHead
	return quiet && hasAnyPrefix(r.URL.Path, c.QuietPaths)
}

func (c LoggingConfig) clientAddr(r *http.Request) string {
	if c.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitizeLogField drops control characters so a request cannot forge log
// lines or emit terminal escapes. Line breaks become spaces and tabs stay.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// quoteW3C wraps values containing blanks or quotes in double quotes,
// doubling embedded quotes.
func quoteW3C(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
