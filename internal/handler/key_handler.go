package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parserator/internal/service"
)

// KeyHandler handles API key management for dashboard sessions.
type KeyHandler struct {
	keyService service.APIKeyService
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(keyService service.APIKeyService) *KeyHandler {
	return &KeyHandler{keyService: keyService}
}

// Create handles POST /v1/keys
//
//	@Summary		Create an API key
//	@Description	The plaintext secret is returned once and never stored.
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		CreateKeyRequest	true	"Key details"
//	@Success		201		{object}	APIResponse{data=service.CreatedKey}
//	@Failure		400		{object}	APIResponse
//	@Router			/v1/keys [post]
func (h *KeyHandler) Create(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	var input service.CreateKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	created, err := h.keyService.Create(c.Request.Context(), accountID, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, created)
}

// List handles GET /v1/keys
//
//	@Summary	List API keys
//	@Tags		keys
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse{data=[]domain.APIKey}
//	@Router		/v1/keys [get]
func (h *KeyHandler) List(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	keys, err := h.keyService.List(c.Request.Context(), accountID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, keys)
}

// Deactivate handles DELETE /v1/keys/:id
//
//	@Summary	Deactivate an API key
//	@Tags		keys
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Key ID"
//	@Success	200	{object}	APIResponse
//	@Failure	403	{object}	APIResponse
//	@Failure	404	{object}	APIResponse
//	@Router		/v1/keys/{id} [delete]
func (h *KeyHandler) Deactivate(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	keyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.keyService.Deactivate(c.Request.Context(), accountID, keyID); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "api key deactivated"})
}
