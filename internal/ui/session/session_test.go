package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip copies the cookies set on rec into a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestTokenLifecycle(t *testing.T) {
	store := NewStore("test-secret-test-secret-test-sec")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Token(store, r))

	rec := httptest.NewRecorder()
	require.NoError(t, SetToken(store, rec, r, "abc"))

	r = roundTrip(rec)
	assert.Equal(t, "abc", Token(store, r))

	rec = httptest.NewRecorder()
	require.NoError(t, Clear(store, rec, r))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0, "cookie expired")
}

func TestFlashes(t *testing.T) {
	store := NewStore("test-secret-test-secret-test-sec")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, AddFlash(store, rec, r, "Saved"))

	r = roundTrip(rec)
	rec = httptest.NewRecorder()
	assert.Equal(t, []string{"Saved"}, Flashes(store, rec, r))

	r = roundTrip(rec)
	assert.Empty(t, Flashes(store, httptest.NewRecorder(), r), "flashes are read once")
}

func TestExpireKeepsFlash(t *testing.T) {
	store := NewStore("test-secret-test-secret-test-sec")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, SetToken(store, rec, r, "abc"))

	r = roundTrip(rec)
	rec = httptest.NewRecorder()
	require.NoError(t, Expire(store, rec, r, "Session expired"))

	r = roundTrip(rec)
	assert.Empty(t, Token(store, r))
	assert.Equal(t, []string{"Session expired"}, Flashes(store, httptest.NewRecorder(), r))
}
