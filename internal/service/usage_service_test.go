package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parserator/internal/domain"
	"parserator/internal/export"
	"parserator/internal/service"
	"parserator/mocks"
)

func TestUsageService_Summary(t *testing.T) {
	usageRepo := new(mocks.MockUsageRepo)
	recordRepo := new(mocks.MockUsageRecordRepo)
	svc := service.NewUsageService(usageRepo, recordRepo)
	principal := proPrincipal()

	usageRepo.On("Get", mock.Anything, principal.Account.ID, 10000, mock.AnythingOfType("time.Time")).Return(&domain.MonthlyUsage{
		Count:       120,
		InFlight:    2,
		Limit:       10000,
		LastResetAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil)
	recordRepo.On("ListByAccount", mock.Anything, principal.Account.ID, mock.AnythingOfType("time.Time"), 0, 20).Return(nil, 0, nil)

	summary, err := svc.Summary(context.Background(), principal)

	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, summary.Tier)
	assert.Equal(t, 120, summary.MonthlyUsage)
	assert.Equal(t, 10000, summary.MonthlyLimit)
	assert.Equal(t, 9878, summary.Remaining)
	assert.Equal(t, 100, summary.RateLimitPerMinute)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), summary.ResetAt)
	assert.NotNil(t, summary.Recent)
	assert.Empty(t, summary.Recent)
}

func TestUsageService_Summary_RepoError(t *testing.T) {
	usageRepo := new(mocks.MockUsageRepo)
	recordRepo := new(mocks.MockUsageRecordRepo)
	svc := service.NewUsageService(usageRepo, recordRepo)
	principal := proPrincipal()

	usageRepo.On("Get", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := svc.Summary(context.Background(), principal)
	assert.Error(t, err)
	recordRepo.AssertNotCalled(t, "ListByAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUsageService_Export_CSV(t *testing.T) {
	usageRepo := new(mocks.MockUsageRepo)
	recordRepo := new(mocks.MockUsageRecordRepo)
	svc := service.NewUsageService(usageRepo, recordRepo)
	accountID := uuid.New()
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []domain.UsageRecord{
		{ID: uuid.New(), AccountID: accountID, RequestID: "req_a", StatusCode: 200, TokensUsed: 300, Confidence: 0.9, CreatedAt: since.Add(time.Hour)},
		{ID: uuid.New(), AccountID: accountID, RequestID: "req_b", StatusCode: 200, TokensUsed: 120, Confidence: 0.7, CreatedAt: since.Add(2 * time.Hour)},
	}
	recordRepo.On("ListByAccount", mock.Anything, accountID, since, 0, 500).Return(records, 2, nil)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), accountID, export.FormatCSV, since, &buf)

	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, string(export.BOM)))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, string(export.BOM))), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Request ID")
	assert.Contains(t, lines[1], "req_a")
	assert.Contains(t, lines[2], "req_b")
	recordRepo.AssertNumberOfCalls(t, "ListByAccount", 1)
}

func TestUsageService_Export_Pages(t *testing.T) {
	usageRepo := new(mocks.MockUsageRepo)
	recordRepo := new(mocks.MockUsageRecordRepo)
	svc := service.NewUsageService(usageRepo, recordRepo)
	accountID := uuid.New()

	page := make([]domain.UsageRecord, 500)
	for i := range page {
		page[i] = domain.UsageRecord{ID: uuid.New(), RequestID: "req", StatusCode: 200}
	}
	recordRepo.On("ListByAccount", mock.Anything, accountID, mock.Anything, 0, 500).Return(page, 501, nil)
	recordRepo.On("ListByAccount", mock.Anything, accountID, mock.Anything, 500, 500).Return(page[:1], 501, nil)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), accountID, export.FormatXLSX, time.Time{}, &buf)

	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
	recordRepo.AssertExpectations(t)
}

func TestUsageService_Export_UnsupportedFormat(t *testing.T) {
	usageRepo := new(mocks.MockUsageRepo)
	recordRepo := new(mocks.MockUsageRecordRepo)
	svc := service.NewUsageService(usageRepo, recordRepo)
	recordRepo.On("ListByAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 0, nil)

	err := svc.Export(context.Background(), uuid.New(), export.Format("pdf"), time.Time{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
