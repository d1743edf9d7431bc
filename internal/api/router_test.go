package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enos-mapping-backend/config"
	"enos-mapping-backend/internal/classify"
)

func TestRouter_RateLimitKeyedByConfiguredHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.ServerConfig{
		RequestIPHeader: "X-Real-IP",
		RateLimitPerSec: 0.01, // effectively one request per bucket
		RateLimitBurst:  1,
		CacheTTLSeconds: 1,
	}
	router := NewRouter(cfg, newTestStore(t), localMapper(), classify.NewEngine(), nil,
		&webpush.Options{VAPIDPublicKey: "test-public-key"})

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/vapid_public_key", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	// A different client, as told by the header, gets its own bucket.
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}
