package session

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

type ctxKey string

const sessionIDKey ctxKey = "sessionID"

// Cookies issues and verifies signed session-id cookies. Cookies carry no
// expiry, so they end with the browser session; stored data expires with
// the Store's TTL.
type Cookies struct {
	name  string
	codec *securecookie.SecureCookie
}

// NewCookies creates a cookie signer keyed by secret.
func NewCookies(name, secret string) *Cookies {
	// MaxAge 0 disables the signed timestamp check; lifetime belongs to the store.
	codec := securecookie.New([]byte(secret), nil).MaxAge(0)
	return &Cookies{name: name, codec: codec}
}

// Middleware resolves the session id of every request, issuing a new one
// when the cookie is missing or its signature does not verify.
func (c *Cookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := "", false
		if ck, err := r.Cookie(c.name); err == nil {
			sid, ok = c.decode(ck.Value)
		}
		if !ok {
			sid = uuid.NewString()
			value, err := c.codec.Encode(c.name, sid)
			if err != nil {
				log.Printf("[Session] failed to sign session cookie: %v", err)
			} else {
				http.SetCookie(w, &http.Cookie{
					Name:     c.name,
					Value:    value,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IDFromContext returns the session id set by Middleware.
func IDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// decode verifies a cookie value and returns the session id it carries.
func (c *Cookies) decode(value string) (string, bool) {
	var sid string
	if err := c.codec.Decode(c.name, value, &sid); err != nil {
		return "", false
	}
	if _, err := uuid.Parse(sid); err != nil {
		return "", false
	}
	return sid, true
}
