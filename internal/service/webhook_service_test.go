package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parserator/internal/config"
	"parserator/internal/domain"
	"parserator/internal/service"
	"parserator/mocks"
)

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{MaxRetries: 2, RetryDelay: 10 * time.Millisecond, Timeout: 2 * time.Second}
}

func newWebhookService(repo *mocks.MockWebhookRepo, cfg config.WebhookConfig) (service.WebhookService, *service.TaskRunner) {
	tasks := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 2, TaskTimeout: 5 * time.Second})
	return service.NewWebhookService(repo, tasks, nil, cfg), tasks
}

type capturedDelivery struct {
	body      []byte
	signature string
}

func TestSign_Deterministic(t *testing.T) {
	a := service.Sign("whsec_abc", []byte(`{"x":1}`))
	b := service.Sign("whsec_abc", []byte(`{"x":1}`))
	c := service.Sign("whsec_other", []byte(`{"x":1}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGenerateWebhookSecret(t *testing.T) {
	secret, err := service.GenerateWebhookSecret()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.Len(t, secret, len("whsec_")+48)
}

func TestWebhookService_Create(t *testing.T) {
	accountID := uuid.New()

	t.Run("success dedupes events", func(t *testing.T) {
		repo := new(mocks.MockWebhookRepo)
		svc, _ := newWebhookService(repo, testWebhookConfig())
		repo.On("Create", mock.Anything, mock.MatchedBy(func(w *domain.Webhook) bool {
			return w.AccountID == accountID && len(w.Events) == 2 && w.IsActive && strings.HasPrefix(w.Secret, "whsec_")
		})).Return(nil)

		created, err := svc.Create(context.Background(), accountID, service.CreateWebhookInput{
			TargetURL: "https://hooks.example.com/parserator",
			Events:    []string{"parse.completed", "parse.failed", "parse.completed"},
		})

		require.NoError(t, err)
		assert.Equal(t, created.Webhook.Secret, created.Secret)
		assert.Equal(t, []string{"parse.completed", "parse.failed"}, created.Webhook.Events)
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		input  service.CreateWebhookInput
		target error
	}{
		{"ftp scheme", service.CreateWebhookInput{TargetURL: "ftp://example.com", Events: []string{"parse.completed"}}, domain.ErrInvalidWebhookURL},
		{"no host", service.CreateWebhookInput{TargetURL: "https://", Events: []string{"parse.completed"}}, domain.ErrInvalidWebhookURL},
		{"no events", service.CreateWebhookInput{TargetURL: "https://example.com/h"}, domain.ErrNoWebhookEvents},
		{"unknown event", service.CreateWebhookInput{TargetURL: "https://example.com/h", Events: []string{"parse.started"}}, domain.ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockWebhookRepo)
			svc, _ := newWebhookService(repo, testWebhookConfig())

			_, err := svc.Create(context.Background(), accountID, tt.input)

			assert.ErrorIs(t, err, tt.target)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestWebhookService_Delete(t *testing.T) {
	accountID := uuid.New()
	hookID := uuid.New()

	t.Run("other account forbidden", func(t *testing.T) {
		repo := new(mocks.MockWebhookRepo)
		svc, _ := newWebhookService(repo, testWebhookConfig())
		repo.On("GetByID", mock.Anything, hookID).Return(&domain.Webhook{ID: hookID, AccountID: uuid.New()}, nil)

		err := svc.Delete(context.Background(), accountID, hookID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(mocks.MockWebhookRepo)
		svc, _ := newWebhookService(repo, testWebhookConfig())
		repo.On("GetByID", mock.Anything, hookID).Return(nil, domain.ErrNotFound)

		err := svc.Delete(context.Background(), accountID, hookID)
		assert.ErrorIs(t, err, domain.ErrWebhookNotFound)
	})
}

func TestWebhookService_Dispatch_SignedDelivery(t *testing.T) {
	var mu sync.Mutex
	var got []capturedDelivery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedDelivery{body: body, signature: r.Header.Get(service.SignatureHeader)})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo := new(mocks.MockWebhookRepo)
	svc, _ := newWebhookService(repo, testWebhookConfig())
	accountID := uuid.New()
	hook := domain.Webhook{ID: uuid.New(), AccountID: accountID, TargetURL: srv.URL, Secret: "whsec_test", Events: []string{"parse.completed"}, IsActive: true}

	repo.On("ListActiveForEvent", mock.Anything, accountID, domain.EventParseCompleted).Return([]domain.Webhook{hook}, nil)
	repo.On("RecordSuccess", mock.Anything, hook.ID, mock.Anything).Return(nil)

	err := svc.Dispatch(context.Background(), accountID, domain.EventParseCompleted, "req_40", map[string]interface{}{"confidence": 0.9})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, service.Sign("whsec_test", got[0].body), got[0].signature)

	var payload service.WebhookEventPayload
	require.NoError(t, json.Unmarshal(got[0].body, &payload))
	assert.True(t, strings.HasPrefix(payload.EventID, "evt_"))
	assert.Equal(t, domain.EventParseCompleted, payload.EventName)
	assert.Equal(t, "req_40", payload.JobID)
	assert.Equal(t, 0.9, payload.Data["confidence"])
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Dispatch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := new(mocks.MockWebhookRepo)
	svc, _ := newWebhookService(repo, testWebhookConfig())
	accountID := uuid.New()
	hook := domain.Webhook{ID: uuid.New(), AccountID: accountID, TargetURL: srv.URL, Secret: "whsec_test", IsActive: true}

	repo.On("ListActiveForEvent", mock.Anything, accountID, domain.EventParseFailed).Return([]domain.Webhook{hook}, nil)
	repo.On("RecordFailure", mock.Anything, hook.ID, mock.Anything).Return(nil)
	repo.On("RecordSuccess", mock.Anything, hook.ID, mock.Anything).Return(nil)

	err := svc.Dispatch(context.Background(), accountID, domain.EventParseFailed, "req_41", nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	repo.AssertNumberOfCalls(t, "RecordFailure", 2)
	repo.AssertNumberOfCalls(t, "RecordSuccess", 1)
}

func TestWebhookService_Dispatch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := new(mocks.MockWebhookRepo)
	svc, _ := newWebhookService(repo, testWebhookConfig())
	accountID := uuid.New()
	hook := domain.Webhook{ID: uuid.New(), AccountID: accountID, TargetURL: srv.URL, Secret: "whsec_test", IsActive: true}

	repo.On("ListActiveForEvent", mock.Anything, accountID, domain.EventParseFailed).Return([]domain.Webhook{hook}, nil)
	repo.On("RecordFailure", mock.Anything, hook.ID, mock.Anything).Return(nil)

	err := svc.Dispatch(context.Background(), accountID, domain.EventParseFailed, "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), hook.ID.String())
	assert.Equal(t, int32(3), calls.Load())
	repo.AssertNumberOfCalls(t, "RecordFailure", 3)
	repo.AssertNotCalled(t, "RecordSuccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Publish_RunsInBackground(t *testing.T) {
	delivered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := new(mocks.MockWebhookRepo)
	svc, tasks := newWebhookService(repo, testWebhookConfig())
	accountID := uuid.New()
	hook := domain.Webhook{ID: uuid.New(), AccountID: accountID, TargetURL: srv.URL, Secret: "whsec_test", IsActive: true}

	repo.On("ListActiveForEvent", mock.Anything, accountID, domain.EventAPIKeyCreated).Return([]domain.Webhook{hook}, nil)
	repo.On("RecordSuccess", mock.Anything, hook.ID, mock.Anything).Return(nil)

	svc.Publish(accountID, domain.EventAPIKeyCreated, "key_1", map[string]interface{}{"name": "ci"})
	tasks.Wait()

	select {
	case <-delivered:
	default:
		t.Fatal("expected webhook delivery")
	}
	repo.AssertExpectations(t)
}

func TestWebhookService_Dispatch_NoSubscribers(t *testing.T) {
	repo := new(mocks.MockWebhookRepo)
	svc, _ := newWebhookService(repo, testWebhookConfig())
	accountID := uuid.New()
	repo.On("ListActiveForEvent", mock.Anything, accountID, domain.EventParseCompleted).Return([]domain.Webhook{}, nil)

	err := svc.Dispatch(context.Background(), accountID, domain.EventParseCompleted, "req_42", nil)

	assert.NoError(t, err)
}
