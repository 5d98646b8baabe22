package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parserator/internal/export"
	"parserator/internal/service"
)

// UsageHandler handles usage reporting endpoints.
type UsageHandler struct {
	usageService service.UsageService
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageService service.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Summary handles GET /v1/usage
//
//	@Summary	Current month usage for the calling API key's account
//	@Tags		usage
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Success	200	{object}	APIResponse{data=service.UsageSummary}
//	@Failure	401	{object}	APIResponse
//	@Router		/v1/usage [get]
func (h *UsageHandler) Summary(c *gin.Context) {
	principal, _, ok := accountFromPrincipal(c)
	if !ok {
		return
	}

	summary, err := h.usageService.Summary(c.Request.Context(), principal)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, summary)
}

// Export handles GET /v1/usage/export?format=csv|xlsx&since=2025-01-01
//
//	@Summary	Download usage history
//	@Tags		usage
//	@Produce	text/csv
//	@Security	ApiKeyAuth
//	@Param		format	query	string	false	"csv or xlsx"	default(csv)
//	@Param		since	query	string	false	"start date, YYYY-MM-DD (default: 90 days ago)"
//	@Success	200
//	@Failure	400	{object}	APIResponse
//	@Router		/v1/usage/export [get]
func (h *UsageHandler) Export(c *gin.Context) {
	_, accountID, ok := accountFromPrincipal(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -90)
	if s := c.Query("since"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "since must be a date in YYYY-MM-DD format")
			return
		}
		since = parsed
	}

	// Buffer so a mid-export failure still produces a JSON error instead of a truncated file.
	var buf bytes.Buffer
	if err := h.usageService.Export(c.Request.Context(), accountID, format, since, &buf); err != nil {
		HandleError(c, err)
		return
	}

	filename := export.BuildFilename("parserator_usage", format, time.Now().UTC())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
