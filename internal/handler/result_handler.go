package handler

import (
	"github.com/gin-gonic/gin"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// ResultHandler serves links to archived parse results.
type ResultHandler struct {
	links service.ResultLinker
}

// NewResultHandler creates a new ResultHandler. A nil linker means archiving is off.
func NewResultHandler(links service.ResultLinker) *ResultHandler {
	return &ResultHandler{links: links}
}

// Link handles GET /v1/results/:requestId
//
//	@Summary	Presigned download link for an archived parse result
//	@Tags		results
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		requestId	path		string	true	"request id returned in metadata.requestId"
//	@Success	200			{object}	APIResponse{data=service.ResultLink}
//	@Failure	400			{object}	APIResponse
//	@Failure	404			{object}	APIResponse
//	@Router		/v1/results/{requestId} [get]
func (h *ResultHandler) Link(c *gin.Context) {
	_, accountID, ok := accountFromPrincipal(c)
	if !ok {
		return
	}
	if h.links == nil {
		HandleError(c, domain.ErrArchiveDisabled)
		return
	}

	link, err := h.links.Link(c.Request.Context(), accountID, c.Param("requestId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, link)
}
