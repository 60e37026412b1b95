package auth

import (
	"fmt"
	"strings"
)

// CookieName is the cookie consulted when no Authorization header is sent
const CookieName = "gc_token"

// ExtractJWTFromAuthHeader extracts the token from an "Authorization: Bearer {token}" header
func ExtractJWTFromAuthHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return strings.TrimSpace(token), nil
}

// ExtractJWTFromCookie returns the value of cookieName from a Cookie header, or ""
func ExtractJWTFromCookie(cookieHeader string, cookieName string) string {
	if cookieHeader == "" || cookieName == "" {
		return ""
	}

	for _, cookie := range strings.Split(cookieHeader, ";") {
		cookie = strings.TrimSpace(cookie)
		if value, ok := strings.CutPrefix(cookie, cookieName+"="); ok {
			return value
		}
	}

	return ""
}

// ExtractJWTFromRequest tries the Authorization header first and falls back to the cookie.
// Browsers cannot set headers on websocket handshakes, so the event stream relies on the cookie.
func ExtractJWTFromRequest(authHeader, cookieHeader, cookieName string) (string, error) {
	if authHeader != "" {
		token, err := ExtractJWTFromAuthHeader(authHeader)
		if err == nil {
			return token, nil
		}
	}

	if token := ExtractJWTFromCookie(cookieHeader, cookieName); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no authentication token found in header or cookie")
}
