package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parserator/internal/service"
)

// WebhookHandler handles webhook subscription endpoints.
type WebhookHandler struct {
	webhookService service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// Create handles POST /v1/webhooks
//
//	@Summary		Subscribe a webhook
//	@Description	The signing secret is returned once. Deliveries carry X-Parserator-Signature-256.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		CreateWebhookRequest	true	"Subscription"
//	@Success		201		{object}	APIResponse{data=service.CreatedWebhook}
//	@Failure		400		{object}	APIResponse
//	@Router			/v1/webhooks [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	var input service.CreateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	created, err := h.webhookService.Create(c.Request.Context(), accountID, input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, created)
}

// List handles GET /v1/webhooks
//
//	@Summary	List webhooks
//	@Tags		webhooks
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	APIResponse{data=[]domain.Webhook}
//	@Router		/v1/webhooks [get]
func (h *WebhookHandler) List(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	hooks, err := h.webhookService.List(c.Request.Context(), accountID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, hooks)
}

// Delete handles DELETE /v1/webhooks/:id
//
//	@Summary	Delete a webhook
//	@Tags		webhooks
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Webhook ID"
//	@Success	200	{object}	APIResponse
//	@Failure	403	{object}	APIResponse
//	@Failure	404	{object}	APIResponse
//	@Router		/v1/webhooks/{id} [delete]
func (h *WebhookHandler) Delete(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	hookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.webhookService.Delete(c.Request.Context(), accountID, hookID); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "webhook deleted"})
}
