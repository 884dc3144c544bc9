package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type compiledCORS struct {
	origins     []string
	wildcard    bool
	methods     string
	headers     string
	exposed     string
	credentials bool
	maxAge      string
}

func (p CORSPolicy) compile() compiledCORS {
	c := compiledCORS{
		methods:     strings.Join(normalizeList(p.AllowedMethods), ", "),
		headers:     strings.Join(normalizeList(p.AllowedHeaders), ", "),
		exposed:     strings.Join(normalizeList(p.ExposedHeaders), ", "),
		credentials: p.AllowCredentials,
	}
	for _, o := range normalizeList(p.AllowedOrigins) {
		if o == "*" {
			c.wildcard = true
			continue
		}
		c.origins = append(c.origins, o)
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		c.maxAge = strconv.Itoa(secs)
	}
	return c
}

// allowOrigin returns the value for Access-Control-Allow-Origin. A wildcard policy echoes the
// origin when credentials are allowed, since browsers reject "*" with credentials.
func (c compiledCORS) allowOrigin(origin string) (string, bool) {
	for _, candidate := range c.origins {
		if strings.EqualFold(candidate, origin) {
			return origin, true
		}
	}
	if c.wildcard {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

// WithCORS adds basic CORS handling. If AllowedOrigins is empty, it is a no-op.
func WithCORS(policy CORSPolicy) Middleware {
	c := policy.compile()
	if len(c.origins) == 0 && !c.wildcard {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow, ok := c.allowOrigin(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Add("Vary", "Origin")
			if c.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if c.exposed != "" {
				h.Set("Access-Control-Expose-Headers", c.exposed)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			if c.methods != "" {
				h.Set("Access-Control-Allow-Methods", c.methods)
			}
			if c.headers != "" {
				h.Set("Access-Control-Allow-Headers", c.headers)
			}
			if c.maxAge != "" {
				h.Set("Access-Control-Max-Age", c.maxAge)
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
