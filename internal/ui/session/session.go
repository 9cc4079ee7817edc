// Package session stores the per-browser console state in a signed cookie.
package session

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// Name is the cookie name of the console session.
const Name = "docdesk"

const (
	keyToken = "token"
	keyFlash = "flash"
)

// LoginRequiredPath is where the console sends a browser after a 401.
const LoginRequiredPath = "/login-required"

// ExpiredPath clears the session and then redirects to LoginRequiredPath.
const ExpiredPath = "/session/expired"

// NewStore creates the cookie store used by the console.
func NewStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400 * 30) // 30 days
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// Token returns the bearer token stored for this browser, if any.
func Token(store sessions.Store, r *http.Request) string {
	sess, err := store.Get(r, Name)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[keyToken].(string)
	return tok
}

// SetToken stores a bearer token for this browser.
func SetToken(store sessions.Store, w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := store.Get(r, Name)
	sess.Values[keyToken] = token
	return sess.Save(r, w)
}

// Clear drops every value and expires the cookie.
func Clear(store sessions.Store, w http.ResponseWriter, r *http.Request) error {
	sess, _ := store.Get(r, Name)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// AddFlash queues a one-time message for the next page.
func AddFlash(store sessions.Store, w http.ResponseWriter, r *http.Request, msg string) error {
	sess, _ := store.Get(r, Name)
	sess.AddFlash(msg, keyFlash)
	return sess.Save(r, w)
}

// Flashes pops the queued messages.
func Flashes(store sessions.Store, w http.ResponseWriter, r *http.Request) []string {
	sess, err := store.Get(r, Name)
	if err != nil {
		return nil
	}
	raw := sess.Flashes(keyFlash)
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(r, w)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Expire drops the stored token and queues msg for the login page in a
// single save, keeping the cookie so the flash survives the redirect.
func Expire(store sessions.Store, w http.ResponseWriter, r *http.Request, msg string) error {
	sess, _ := store.Get(r, Name)
	sess.Values = map[any]any{}
	if msg != "" {
		sess.AddFlash(msg, keyFlash)
	}
	return sess.Save(r, w)
}
