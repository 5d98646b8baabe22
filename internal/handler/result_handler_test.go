package handler_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/handler"
	"parserator/internal/service"
	"parserator/mocks"
)

func TestResultHandler_Link(t *testing.T) {
	links := new(mocks.MockResultLinker)
	h := handler.NewResultHandler(links)
	principal := testPrincipal()
	expires := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)

	links.On("Link", mock.Anything, principal.Account.ID, "req_abc").Return(&service.ResultLink{
		RequestID: "req_abc", URL: "https://results.example/req_abc.json?sig=1", ExpiresAt: expires,
	}, nil)

	c, w := newJSONContext(http.MethodGet, "/v1/results/req_abc", nil)
	c.Params = gin.Params{{Key: "requestId", Value: "req_abc"}}
	withPrincipal(c, principal)
	h.Link(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "https://results.example/req_abc.json?sig=1", data["url"])
	assert.Equal(t, "2026-03-01T12:15:00Z", data["expiresAt"])
	links.AssertExpectations(t)
}

func TestResultHandler_Link_ArchiveDisabled(t *testing.T) {
	h := handler.NewResultHandler(nil)

	c, w := newJSONContext(http.MethodGet, "/v1/results/req_abc", nil)
	c.Params = gin.Params{{Key: "requestId", Value: "req_abc"}}
	withPrincipal(c, testPrincipal())
	h.Link(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ARCHIVE_DISABLED", errorCode(t, w))
}

func TestResultHandler_Link_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad request id", domain.ErrInvalidRequestID, http.StatusBadRequest, "INVALID_REQUEST_ID"},
		{"storage failure", errors.New("archive.Link: no credentials"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := new(mocks.MockResultLinker)
			h := handler.NewResultHandler(links)
			links.On("Link", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			c, w := newJSONContext(http.MethodGet, "/v1/results/x", nil)
			c.Params = gin.Params{{Key: "requestId", Value: "x"}}
			withPrincipal(c, testPrincipal())
			h.Link(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestResultHandler_Link_NoPrincipal(t *testing.T) {
	links := new(mocks.MockResultLinker)
	h := handler.NewResultHandler(links)

	c, w := newJSONContext(http.MethodGet, "/v1/results/req_abc", nil)
	h.Link(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	links.AssertNotCalled(t, "Link", mock.Anything, mock.Anything, mock.Anything)
}
