package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_Deposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	done := make(chan *domain.AuditLog, 1)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			done <- entry
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/admin/funding-sources/:id/deposits", func(c *gin.Context) {
		c.Set(CtxActor, adminActor)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/funding-sources/alice/deposits", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionDeposit, entry.Action)
		assert.Equal(t, "alice", entry.ResourceID)
		assert.Equal(t, adminActor, entry.Actor)
		assert.Contains(t, entry.Details, "/api/v1/admin/funding-sources/alice/deposits")
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_ProvisionUsesHandlerResourceID(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		got = entry
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/admin/funding-sources", func(c *gin.Context) {
		c.Set(CtxResourceID, "carol")
		c.JSON(http.StatusCreated, gin.H{})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/admin/funding-sources", nil))

	if assert.NotNil(t, got) {
		assert.Equal(t, domain.AuditActionProvision, got.Action)
		assert.Equal(t, "carol", got.ResourceID)
	}
}

func TestAuditLog_Skips(t *testing.T) {
	tests := []struct {
		name   string
		method string
		route  string
		path   string
		status int
	}{
		{"read", http.MethodGet, "/api/v1/admin/funding-sources/:id", "/api/v1/admin/funding-sources/alice", http.StatusOK},
		{"failed write", http.MethodPost, "/api/v1/admin/funding-sources/:id/deposits", "/api/v1/admin/funding-sources/alice/deposits", http.StatusBadRequest},
		{"unmapped route", http.MethodPost, "/api/v1/other", "/api/v1/other", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAudit := mocks.NewMockAuditService(ctrl)
			// No expectations: Log must not be called.

			r := gin.New()
			r.Use(AuditLog(mockAudit))
			r.Handle(tt.method, tt.route, func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
