package handler_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/export"
	"parserator/internal/handler"
	"parserator/internal/service"
	"parserator/mocks"
)

func TestUsageHandler_Summary(t *testing.T) {
	svc := new(mocks.MockUsageService)
	h := handler.NewUsageHandler(svc)
	principal := testPrincipal()

	svc.On("Summary", mock.Anything, principal).Return(&service.UsageSummary{
		Tier: domain.TierPro, MonthlyUsage: 12, MonthlyLimit: 10000, Remaining: 9988,
	}, nil)

	c, w := newJSONContext(http.MethodGet, "/v1/usage", nil)
	withPrincipal(c, principal)
	h.Summary(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 9988.0, data["remaining"])
	assert.Equal(t, "pro", data["tier"])
}

func TestUsageHandler_Summary_NoPrincipal(t *testing.T) {
	h := handler.NewUsageHandler(new(mocks.MockUsageService))

	c, w := newJSONContext(http.MethodGet, "/v1/usage", nil)
	h.Summary(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsageHandler_Export_CSV(t *testing.T) {
	svc := new(mocks.MockUsageService)
	h := handler.NewUsageHandler(svc)
	principal := testPrincipal()
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	svc.On("Export", mock.Anything, principal.Account.ID, export.FormatCSV, since, mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = io.WriteString(args.Get(4).(io.Writer), "Request ID,Status\nreq_1,200\n")
		}).Return(nil)

	c, w := newJSONContext(http.MethodGet, "/v1/usage/export?format=csv&since=2025-05-01", nil)
	withPrincipal(c, principal)
	h.Export(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	disposition := w.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="parserator_usage_`))
	assert.True(t, strings.HasSuffix(disposition, `.csv"`))
	assert.Contains(t, w.Body.String(), "req_1,200")
	svc.AssertExpectations(t)
}

func TestUsageHandler_Export_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"unknown format", "?format=pdf", "UNSUPPORTED_FORMAT"},
		{"bad since", "?since=May-2025", "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockUsageService)
			h := handler.NewUsageHandler(svc)

			c, w := newJSONContext(http.MethodGet, "/v1/usage/export"+tt.query, nil)
			withPrincipal(c, testPrincipal())
			h.Export(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
			svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
