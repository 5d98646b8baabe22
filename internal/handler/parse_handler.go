package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/middleware"
	"parserator/internal/service"
)

// Readiness reports whether the model gateway can serve requests.
type Readiness interface {
	Ready() bool
}

// ParseHandler handles POST /v1/parse.
type ParseHandler struct {
	parseService service.ParseService
	gateway      Readiness
	maxBodyBytes int64
}

// NewParseHandler creates a new ParseHandler. Request bodies above
// maxInputBytes plus envelope overhead are rejected before decoding.
func NewParseHandler(parseService service.ParseService, gateway Readiness, maxInputBytes int) *ParseHandler {
	if maxInputBytes <= 0 {
		maxInputBytes = 1 << 20
	}
	return &ParseHandler{
		parseService: parseService,
		gateway:      gateway,
		maxBodyBytes: int64(maxInputBytes) + 256<<10,
	}
}

type parseRequest struct {
	InputData    json.RawMessage `json:"inputData"`
	OutputSchema json.RawMessage `json:"outputSchema"`
	Instructions string          `json:"instructions"`
}

// Parse handles POST /v1/parse
//
//	@Summary		Parse unstructured text into structured JSON
//	@Description	Runs the two-stage Architect/Extractor pipeline over inputData using outputSchema.
//	@Tags			parse
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			body	body		ParseRequestDoc	true	"Parse request"
//	@Success		200		{object}	domain.ParseResult
//	@Failure		400		{object}	domain.ParseResult
//	@Failure		401		{object}	APIResponse
//	@Failure		422		{object}	domain.ParseResult
//	@Failure		429		{object}	APIResponse
//	@Failure		503		{object}	domain.ParseResult
//	@Router			/v1/parse [post]
func (h *ParseHandler) Parse(c *gin.Context) {
	requestID := middleware.GetRequestID(c)

	if h.gateway != nil && !h.gateway.Ready() {
		h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageOrchestration,
			domain.CodeServiceUnavailable, "parsing service is not initialized", nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageValidation,
				domain.CodePayloadTooLarge, "request body is too large",
				map[string]interface{}{"limit": tooLarge.Limit}))
			return
		}
		h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageValidation,
			domain.CodeValidationError, "could not read request body", nil))
		return
	}

	var req parseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageValidation,
			domain.CodeValidationError, "request body must be a JSON object", nil))
		return
	}

	input := service.ParseInput{Instructions: req.Instructions, RequestID: requestID}
	if raw := bytes.TrimSpace(req.InputData); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &input.InputData); err != nil {
			h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageValidation,
				domain.CodeInvalidInputData, "inputData must be a string", nil))
			return
		}
	}
	if raw := bytes.TrimSpace(req.OutputSchema); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var schema domain.OutputSchema
		if err := json.Unmarshal(raw, &schema); err != nil {
			h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageValidation,
				domain.CodeInvalidOutputSchema, "outputSchema must map field names to types", nil))
			return
		}
		input.OutputSchema = &schema
	}

	if principal, err := middleware.GetPrincipal(c); err == nil {
		input.AccountID = principal.Account.ID
		input.MaxInputBytes = principal.Limits.MaxInputBytes
	}

	result, err := h.parseService.Parse(c.Request.Context(), input)
	if err != nil {
		logger.Error("handler.ParseHandler.Parse: pipeline error", "request_id", requestID, "error", err)
		h.respondFailure(c, requestID, domain.NewPipelineError(domain.StageOrchestration,
			domain.CodeUnexpected, "an internal error occurred", nil))
		return
	}

	if result.Success && result.Metadata != nil {
		middleware.ReportOutcome(c, result.Metadata.TokensUsed, result.Metadata.Confidence)
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(PipelineStatus(result.Error), result)
}

func (h *ParseHandler) respondFailure(c *gin.Context, requestID string, pErr *domain.PipelineError) {
	pErr.WithDetail("requestId", requestID).WithDetail("stage", string(pErr.Stage))
	c.JSON(PipelineStatus(pErr), &domain.ParseResult{Success: false, Error: pErr})
}

// PipelineStatus maps a pipeline failure to its HTTP status.
func PipelineStatus(pErr *domain.PipelineError) int {
	if pErr == nil {
		return http.StatusInternalServerError
	}
	return pErr.HTTPStatus()
}

// accountFromPrincipal is used by API-key routes that act on the caller's account.
func accountFromPrincipal(c *gin.Context) (*domain.Principal, uuid.UUID, bool) {
	principal, err := middleware.GetPrincipal(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key context")
		return nil, uuid.Nil, false
	}
	return principal, principal.Account.ID, true
}
