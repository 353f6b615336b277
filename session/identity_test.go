package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	loadErr error
	saveErr error
	saved   []string
}

func (b *brokenStore) Load() (string, error) { return "", b.loadErr }
func (b *brokenStore) Save(id string) error {
	b.saved = append(b.saved, id)
	return b.saveErr
}

func TestGenerate_Format(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	id := Generate(now, "iPhone15,2|ios 17")

	assert.True(t, strings.HasPrefix(id, "guest_1718000000123_"))
	assert.True(t, IsGuestID(id), id)

	parts := strings.Split(id, "_")
	require.Len(t, parts, 4)
	assert.Len(t, parts[2], 9)
	assert.LessOrEqual(t, len(parts[3]), 10)

	other := Generate(now, "iPhone15,2|ios 17")
	assert.NotEqual(t, id, other)
}

func TestGenerate_EmptySignature(t *testing.T) {
	id := Generate(time.Now(), "")
	assert.True(t, IsGuestID(id))
}

func TestIsGuestID(t *testing.T) {
	assert.False(t, IsGuestID(""))
	assert.False(t, IsGuestID("user_123"))
	assert.False(t, IsGuestID("guest_123_short_sig"))
}

func TestIdentity_PersistsAndReuses(t *testing.T) {
	store := &MemoryStore{}
	id := NewIdentity(store, "dev", nil).GetOrCreate()

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, id, stored)

	// a second identity on the same storage resolves the same id
	again := NewIdentity(store, "dev", nil).GetOrCreate()
	assert.Equal(t, id, again)
}

func TestIdentity_StableWithinLifetime(t *testing.T) {
	ident := NewIdentity(&MemoryStore{}, "dev", nil)
	assert.Equal(t, ident.GetOrCreate(), ident.GetOrCreate())
}

func TestIdentity_SaveFailureFallsBackToMemory(t *testing.T) {
	store := &brokenStore{loadErr: ErrNotFound, saveErr: errors.New("disk full")}
	ident := NewIdentity(store, "dev", nil)

	first := ident.GetOrCreate()
	assert.True(t, IsGuestID(first))
	assert.Equal(t, first, ident.GetOrCreate())
	assert.Len(t, store.saved, 1)
}

func TestIdentity_LoadFailureDoesNotOverwrite(t *testing.T) {
	store := &brokenStore{loadErr: errors.New("permission denied")}
	id := NewIdentity(store, "dev", nil).GetOrCreate()

	assert.True(t, IsGuestID(id))
	assert.Empty(t, store.saved)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session")
	fs := NewFileStore(path)

	_, err := fs.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Save("guest_1_abcdefghi_ZGV2"))
	id, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "guest_1_abcdefghi_ZGV2", id)
}

func TestCookieStore_IssuesAndReadsCookie(t *testing.T) {
	cs := NewCookieStore("0123456789abcdef0123456789abcdef", "passphrase", false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	first := NewIdentity(cs.Bind(w, r), "ua", nil).GetOrCreate()

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	second := NewIdentity(cs.Bind(w2, r2), "ua", nil).GetOrCreate()

	assert.Equal(t, first, second)
	assert.Empty(t, w2.Result().Cookies())
}

func TestCookieStore_TamperedCookieIsAbsent(t *testing.T) {
	cs := NewCookieStore("0123456789abcdef0123456789abcdef", "passphrase", false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "garbage"})
	_, err := cs.Bind(httptest.NewRecorder(), r).Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "guest_x", Fixed("guest_x").GetOrCreate())
}
