package httpx

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates the Origin header of websocket upgrade requests
// against the configured client origin. "*" allows everything; an absent
// Origin header (non-browser clients) is allowed.
type OriginChecker struct {
	allowAll bool
	allowed  string
}

// NewOriginChecker normalizes the configured origin once.
func NewOriginChecker(clientOrigin string) OriginChecker {
	trimmed := strings.TrimSpace(clientOrigin)
	if trimmed == "" || trimmed == "*" {
		return OriginChecker{allowAll: true}
	}
	normalized, ok := normalizeOrigin(trimmed)
	if !ok {
		return OriginChecker{}
	}
	return OriginChecker{allowed: normalized}
}

// Check implements the websocket upgrader's CheckOrigin contract.
func (oc OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if oc.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	return normalized == oc.allowed
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
