package auth

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AuditLogger writes one JSON line per authenticated request so that every
// CMDB change can be traced back to the user who made it.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

// remoteAddr prefers the proxy headers since the service sits behind a
// reverse proxy in production deployments.
func remoteAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return r.URL.Scheme
}

// routeAttrs collects the chi URL params so audit lines identify which
// entity a request touched without parsing the path.
func routeAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)

	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return attrs
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
	}
	return attrs
}

func queryAttrs(r *http.Request) []interface{} {
	attrs := make([]interface{}, 0)
	for key, values := range r.URL.Query() {
		attrs = append(attrs, slog.String(key, strings.Join(values, ";")))
	}
	return attrs
}

func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		log.logger.Info("api request",
			"username", user.Username,
			"user_id", user.Id,
			"admin", user.IsAdmin,
			"remote_addr", remoteAddr(r),
			"scheme", requestScheme(r),
			"method", r.Method,
			"path", r.URL.Path,
			slog.Group("route_params", routeAttrs(r)...),
			slog.Group("query_params", queryAttrs(r)...),
		)

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(handler)
}
