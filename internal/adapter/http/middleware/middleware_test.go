package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paygate/internal/core/ports/mocks"
	"paygate/pkg/protocol"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		seen = c.GetString(CtxRequestID)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(protocol.HeaderRequestID))
}

func TestRequestID_PropagatesCallerID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(protocol.HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(protocol.HeaderRequestID))
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		setup      func(h *mocks.MockHashService)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing key",
			setup:      func(h *mocks.MockHashService) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_003",
		},
		{
			name: "wrong key",
			key:  "wrong",
			setup: func(h *mocks.MockHashService) {
				h.EXPECT().Verify("wrong", "stored-hash").Return(false, nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_003",
		},
		{
			name: "corrupt hash",
			key:  "admin",
			setup: func(h *mocks.MockHashService) {
				h.EXPECT().Verify("admin", "stored-hash").Return(false, errors.New("invalid hash format"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "SYS_001",
		},
		{
			name: "valid key",
			key:  "admin",
			setup: func(h *mocks.MockHashService) {
				h.EXPECT().Verify("admin", "stored-hash").Return(true, nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			hashSvc := mocks.NewMockHashService(ctrl)
			tt.setup(hashSvc)

			r := gin.New()
			r.GET("/admin", AdminAuth(hashSvc, "stored-hash", zerolog.Nop()), func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(CtxActor))
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.key != "" {
				req.Header.Set(protocol.HeaderAdminKey, tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w)["error_code"])
			} else {
				assert.Equal(t, adminActor, w.Body.String())
			}
		})
	}
}

func TestAdminAuth_NoConfiguredHash(t *testing.T) {
	ctrl := gomock.NewController(t)
	hashSvc := mocks.NewMockHashService(ctrl)

	r := gin.New()
	r.GET("/admin", AdminAuth(hashSvc, "", zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(protocol.HeaderAdminKey, "anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMaxBodySize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/test", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, string(b))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte("hello"))))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("A", 100))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", decodeError(t, w)["error_code"])
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(&buf)))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(protocol.HeaderRequestID, "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/missing", entry["path"])
	assert.Equal(t, float64(404), entry["status"])
	assert.Equal(t, "req-7", entry["request_id"])
}
