package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
)

func TestCookies_Middleware(t *testing.T) {
	cookies := NewCookies("session", "secret")

	var seen string
	h := cookies.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IDFromContext(r.Context())
	}))

	// First request gets a new session.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	issued := rec.Result().Cookies()
	if len(issued) != 1 || issued[0].Name != "session" {
		t.Fatalf("expected a session cookie, got %v", issued)
	}
	if !issued[0].Expires.IsZero() || issued[0].MaxAge != 0 {
		t.Fatalf("session cookie should not be permanent: %+v", issued[0])
	}
	if !issued[0].HttpOnly {
		t.Fatalf("session cookie should be HttpOnly")
	}
	first := seen
	if first == "" {
		t.Fatal("expected a session id in context")
	}

	t.Run("validCookieKeepsSession", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(issued[0])
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != first {
			t.Fatalf("expected session %q, got %q", first, seen)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatalf("no new cookie expected for a valid session")
		}
	})

	t.Run("unsignedCookieRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: first})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen == first {
			t.Fatal("a bare session id should not be accepted")
		}
		if len(rec.Result().Cookies()) != 1 {
			t.Fatal("expected a replacement cookie")
		}
	})

	t.Run("tamperedCookieRejected", func(t *testing.T) {
		value := []byte(issued[0].Value)
		value[len(value)/2] ^= 0x01
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: string(value)})
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == first {
			t.Fatal("tampered cookie should start a fresh session")
		}
	})

	t.Run("otherSecretRejected", func(t *testing.T) {
		other, err := securecookie.New([]byte("different"), nil).Encode("session", first)
		if err != nil {
			t.Fatalf("Encode error: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: other})
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == first {
			t.Fatal("cookie signed with another secret should be rejected")
		}
	})

	t.Run("signedNonUUIDRejected", func(t *testing.T) {
		value, err := securecookie.New([]byte("secret"), nil).Encode("session", "../../etc")
		if err != nil {
			t.Fatalf("Encode error: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: value})
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "../../etc" {
			t.Fatal("session ids must be uuids")
		}
	})
}
