package auth

import (
	"net/http"
	"time"
)

// Cookie names for the persistent login pair. The token rotates on every
// validation; the identifier is stable for the device lineage.
const (
	SessionTokenCookie      = "session_token"
	SessionIdentifierCookie = "session_id"
)

// CookieConfig holds cookie attributes shared by both session cookies.
type CookieConfig struct {
	Domain   string // empty = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetSessionCookies writes the token/identifier pair after issuing or
// rotating a persistent session. Both are httpOnly; nothing client-side
// ever needs to read them.
func SetSessionCookies(w http.ResponseWriter, token, identifier string, maxAge int, config CookieConfig) {
	setSessionCookie(w, SessionTokenCookie, token, maxAge, config)
	setSessionCookie(w, SessionIdentifierCookie, identifier, maxAge, config)
}

// ClearSessionCookies removes both session cookies, on logout or after a
// failed validation.
func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	setSessionCookie(w, SessionTokenCookie, "", -1, config)
	setSessionCookie(w, SessionIdentifierCookie, "", -1, config)
}

// GetSessionCookies reads the token/identifier pair from a request. Either
// value is empty when its cookie is missing.
func GetSessionCookies(r *http.Request) (token, identifier string) {
	if c, err := r.Cookie(SessionTokenCookie); err == nil {
		token = c.Value
	}
	if c, err := r.Cookie(SessionIdentifierCookie); err == nil {
		identifier = c.Value
	}
	return token, identifier
}

func setSessionCookie(w http.ResponseWriter, name, value string, maxAge int, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(w, cookie)
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
