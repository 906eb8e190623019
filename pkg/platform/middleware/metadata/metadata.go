// Package metadata extracts client network metadata early in the middleware
// chain so handlers and audit logging can reach it through the context.
package metadata

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyClientIP struct{}
type contextKeyDevice struct{}

// Device is a coarse description of the calling client, parsed from the
// User-Agent header. Logged alongside audit events; never used for
// authorization.
type Device struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// ClientMetadata captures the client IP and a parsed device description.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyClientIP{}, ClientIPFromRequest(r))
		ctx = context.WithValue(ctx, contextKeyDevice{}, parseDevice(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return ip
	}
	return ""
}

// GetDevice retrieves the parsed device description from the context.
func GetDevice(ctx context.Context) Device {
	if d, ok := ctx.Value(contextKeyDevice{}).(Device); ok {
		return d
	}
	return Device{}
}

// WithClientMetadata injects metadata directly, for tests that skip the
// middleware chain.
func WithClientMetadata(ctx context.Context, clientIP string, device Device) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	return context.WithValue(ctx, contextKeyDevice{}, device)
}

// ClientIPFromRequest resolves the original client IP behind proxies:
// X-Forwarded-For first entry, then X-Real-IP, then RemoteAddr.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func parseDevice(rawUA string) Device {
	if rawUA == "" {
		return Device{}
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	return Device{
		Browser: browser,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
