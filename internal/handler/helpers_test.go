package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"parserator/internal/domain"
	"parserator/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJSONContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func withAccount(c *gin.Context, accountID uuid.UUID) {
	c.Set(middleware.ContextKeyAccountID, accountID)
}

func withPrincipal(c *gin.Context, principal *domain.Principal) {
	c.Set(middleware.ContextKeyPrincipal, principal)
	c.Set(middleware.ContextKeyAccountID, principal.Account.ID)
}

func testPrincipal() *domain.Principal {
	return &domain.Principal{
		Account: &domain.Account{ID: uuid.New(), Email: "dev@example.com", Tier: domain.TierPro, IsActive: true},
		APIKey:  &domain.APIKey{ID: uuid.New(), Name: "ci"},
		Limits:  domain.TierLimits{RequestsPerMonth: 10000, RequestsPerMinute: 60, MaxInputBytes: 200000},
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %s", w.Body.String())
	code, _ := errObj["code"].(string)
	return code
}
