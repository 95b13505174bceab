package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"portfolio/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Client describes the software behind a User-Agent header.
type Client struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// ParseUserAgent classifies a raw User-Agent header. An empty header yields the
// zero Client.
func ParseUserAgent(raw string) Client {
	if strings.TrimSpace(raw) == "" {
		return Client{}
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if version != "" {
		name += " " + version
	}
	return Client{
		Browser: name,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
