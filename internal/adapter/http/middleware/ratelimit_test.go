package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paygate/internal/adapter/http/middleware"
	redisStore "paygate/internal/adapter/storage/redis"
	"paygate/internal/core/ports"
	"paygate/internal/core/ports/mocks"
	"paygate/pkg/protocol"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(store ports.RateLimitStore, tokens ports.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.POST("/mcp", middleware.RateLimiter(store, tokens, "mcp", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisStore(t *testing.T) *redisStore.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func post(router *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "/mcp", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newRedisStore(t), nil)

	for i := 0; i < 3; i++ {
		w := post(router, nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := post(router, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_SeparateQuotaPerFundingSource(t *testing.T) {
	router := setupRateLimitRouter(newRedisStore(t), nil)

	alice := http.Header{protocol.HeaderFundingSource: []string{"alice"}}
	bob := http.Header{protocol.HeaderFundingSource: []string{"bob"}}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(router, alice).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, post(router, alice).Code)
	assert.Equal(t, http.StatusOK, post(router, bob).Code)
}

func TestRateLimiter_IdentifiesBearerTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate("tok-alice").Return(&ports.TokenClaims{FundingSourceID: "alice"}, nil).AnyTimes()

	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Allow(gomock.Any(), "mcp:fs:alice", 3, time.Minute).Return(true, 2, nil)

	router := setupRateLimitRouter(store, tokens)
	w := post(router, http.Header{protocol.HeaderAuthorization: []string{protocol.BearerPrefix + "tok-alice"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Allow(gomock.Any(), gomock.Any(), 3, time.Minute).Return(false, 0, errors.New("redis down")).Times(5)

	router := setupRateLimitRouter(store, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, post(router, nil).Code)
	}
}
