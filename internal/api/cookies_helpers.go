package api

import (
	"net/http"
	"strings"
	"time"

	"clipstream/internal/auth"
)

const (
	accessCookieName  = "clipstream_access"
	refreshCookieName = "clipstream_refresh"
)

type AuthCookieSecureMode int

const (
	AuthCookieSecureAuto AuthCookieSecureMode = iota
	AuthCookieSecureAlways
)

type AuthCookiePolicy struct {
	SameSite   http.SameSite
	SecureMode AuthCookieSecureMode
}

func DefaultAuthCookiePolicy() AuthCookiePolicy {
	return AuthCookiePolicy{
		SameSite:   http.SameSiteStrictMode,
		SecureMode: AuthCookieSecureAuto,
	}
}

func (p AuthCookiePolicy) secure(r *http.Request) bool {
	if p.SecureMode == AuthCookieSecureAlways {
		return true
	}
	return isSecureRequest(r)
}

func (h *Handler) cookiePolicy() AuthCookiePolicy {
	policy := h.CookiePolicy
	if policy.SameSite == 0 {
		policy.SameSite = http.SameSiteStrictMode
	}
	return policy
}

func setAuthCookie(w http.ResponseWriter, r *http.Request, name, token string, expires time.Time, policy AuthCookiePolicy) {
	if token == "" {
		return
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

func clearAuthCookie(w http.ResponseWriter, r *http.Request, name string, policy AuthCookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, r *http.Request, pair auth.TokenPair) {
	policy := h.cookiePolicy()
	setAuthCookie(w, r, accessCookieName, pair.AccessToken, pair.AccessExpiresAt, policy)
	setAuthCookie(w, r, refreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt, policy)
}

// ClearSessionCookies removes both auth cookies from the response.
func (h *Handler) ClearSessionCookies(w http.ResponseWriter, r *http.Request) {
	policy := h.cookiePolicy()
	clearAuthCookie(w, r, accessCookieName, policy)
	clearAuthCookie(w, r, refreshCookieName, policy)
}

// ExtractToken pulls the access token from the Authorization header or, as a
// browser fallback, the access cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func extractRefreshToken(r *http.Request, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}
