package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/stockcast/backend-go/internal/domain"
)

func TestErrorResponseStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid transition",
			err: &domain.InvalidTransitionError{
				PONumber: "PO-2026-0001", Current: domain.POStatusDraft, Action: "receive",
			},
			want: http.StatusConflict,
		},
		{
			name: "unknown purchase order",
			err:  fmt.Errorf("purchase order 9999: %w", domain.ErrPONotFound),
			want: http.StatusNotFound,
		},
		{"no history", domain.ErrNoHistoricalData, http.StatusNotFound},
		{"no inventory record", domain.ErrNoInventoryRecord, http.StatusNotFound},
		{"unknown supplier", domain.ErrSupplierNotFound, http.StatusNotFound},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"prediction unavailable", domain.ErrPredictionUnavailable, http.StatusServiceUnavailable},
		{"unclassified", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			errorResponse(c, tt.err)

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}
