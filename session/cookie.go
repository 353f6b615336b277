package session

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	cookieName   = "scarlet_session"
	sessionIDKey = "sid"
)

// CookieStore keeps the visitor's session id in a signed, encrypted cookie.
type CookieStore struct {
	store *sessions.CookieStore
}

// NewCookieStore builds a store from the configured keys. Empty keys are
// replaced with random ones, which invalidates cookies on restart.
func NewCookieStore(authKey, encKey string, secure bool) *CookieStore {
	store := sessions.NewCookieStore(keyFrom(authKey, 64), keyFrom(encKey, 32))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(365 * 24 * time.Hour / time.Second))
	return &CookieStore{store: store}
}

// Bind returns a Store reading from r and writing Set-Cookie to w.
func (c *CookieStore) Bind(w http.ResponseWriter, r *http.Request) Store {
	return &requestStore{store: c.store, w: w, r: r}
}

type requestStore struct {
	store *sessions.CookieStore
	w     http.ResponseWriter
	r     *http.Request
}

func (s *requestStore) Load() (string, error) {
	sess, err := s.store.Get(s.r, cookieName)
	if err != nil {
		// tampered or rotated-key cookies are treated as absent
		return "", ErrNotFound
	}
	id, ok := sess.Values[sessionIDKey].(string)
	if !ok || id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *requestStore) Save(id string) error {
	sess, _ := s.store.Get(s.r, cookieName)
	sess.Values[sessionIDKey] = id
	return sess.Save(s.r, s.w)
}

func keyFrom(secret string, size int) []byte {
	if secret == "" {
		return securecookie.GenerateRandomKey(size)
	}
	if size == 32 && len(secret) != 16 && len(secret) != 24 && len(secret) != 32 {
		sum := sha256.Sum256([]byte(secret))
		return sum[:]
	}
	return []byte(secret)
}

// RequestSignature fingerprints the browser behind r.
func RequestSignature(r *http.Request) string {
	return r.UserAgent() + "|" + r.Header.Get("Accept-Language")
}
