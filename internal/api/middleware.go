package api

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="framescale API"`

// corsHeaders allows browser dashboards on other origins to poll the run.
func corsHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
	h.Set("Access-Control-Max-Age", "86400")
}

// handlePreflight answers OPTIONS requests, which never reach Huma routing.
func handlePreflight(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		corsHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	})
}

func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	h := http.Header{}
	corsHeaders(h)
	for k := range h {
		ctx.SetHeader(k, h.Get(k))
	}
	next(ctx)
}

// quietPaths are polled by dashboards or held open as streams and are
// logged at debug level.
var quietPaths = map[string]bool{
	"/api/health":      true,
	"/api/status":      true,
	"/api/events":      true,
	"/api/metrics":     true,
	"/api/logs/stream": true,
}

func (s *Server) loggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	status := ctx.Status()
	path := ctx.URL().Path

	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	case quietPaths[path]:
		level = slog.LevelDebug
	}

	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	s.logger.LogAttrs(ctx.Context(), level, "HTTP request", attrs...)
}

// authMiddleware checks basic credentials on operations that declare a
// security requirement. EventSource cannot set headers, so SSE clients may
// pass base64 "user:pass" in the auth query parameter instead.
func (s *Server) authMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, problem := credentials(ctx)
		if problem == "" && !(equal(user, username) && equal(pass, password)) {
			problem = "Invalid credentials"
		}
		if problem != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, problem)
			return
		}
		next(ctx)
	}
}

// credentials extracts user and password from the request. problem is the
// client facing reason when they are missing or malformed.
func credentials(ctx huma.Context) (user, pass, problem string) {
	encoded := ctx.Query("auth")
	if header := ctx.Header("Authorization"); header != "" {
		var ok bool
		if encoded, ok = strings.CutPrefix(header, "Basic "); !ok {
			return "", "", "Invalid authentication type"
		}
	}
	if encoded == "" {
		return "", "", "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", "Invalid credentials format"
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", "Invalid credentials format"
	}
	return user, pass, ""
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
