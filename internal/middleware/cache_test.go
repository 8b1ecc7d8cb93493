package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePayload(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	body := []byte(`{"items":[]}`)

	payload, err := encodePayload(http.StatusOK, hdr, body)
	require.NoError(t, err)

	status, gotHdr, gotBody, ok := decodePayload(payload)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	require.Equal(t, body, gotBody)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	for _, bs := range [][]byte{nil, {}, {1, 2, 3}, []byte("short")} {
		_, _, _, ok := decodePayload(bs)
		require.False(t, ok, "decodePayload(%v) accepted garbage", bs)
	}
}

func TestCacheKey(t *testing.T) {
	e := echo.New()

	newCtx := func(target string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/slots")
		return c
	}

	a := cacheKey("cache", newCtx("/v1/slots?date=2026-03-15"))
	b := cacheKey("cache", newCtx("/v1/slots?date=2026-03-15"))
	c := cacheKey("cache", newCtx("/v1/slots?date=2026-03-16"))

	require.Equal(t, a, b, "same route and query must hash to the same key")
	require.NotEqual(t, a, c, "different query must hash to a different key")
	require.Regexp(t, `^cache:`, a)
}
