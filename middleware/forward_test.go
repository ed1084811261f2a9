package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authgate"
	"github.com/stretchr/testify/assert"
)

func TestForwardBearer(t *testing.T) {
	in := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	in = in.WithContext(authgate.WithAuthResult(in.Context(), &authgate.AuthResult{Bearer: "tok-aud"}))

	out := httptest.NewRequest(http.MethodGet, "http://orders.internal/orders", nil)
	out.Header.Set("Cookie", "refresh_session=abc")

	assert.True(t, ForwardBearer(in, out))
	assert.Equal(t, "Bearer tok-aud", out.Header.Get("Authorization"))
	assert.Empty(t, out.Header.Get("Cookie"))
}

func TestForwardBearerWithoutResultStripsAuthorization(t *testing.T) {
	in := httptest.NewRequest(http.MethodGet, "/public", nil)
	out := httptest.NewRequest(http.MethodGet, "http://orders.internal/public", nil)
	out.Header.Set("Authorization", "Bearer spoofed")

	assert.False(t, ForwardBearer(in, out))
	assert.Empty(t, out.Header.Get("Authorization"))
}
