package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// AuthHandler handles dashboard account endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterResponse is returned after sign-up.
type RegisterResponse struct {
	Account *domain.Account    `json:"account"`
	Tokens  *service.TokenPair `json:"tokens"`
}

// Register handles POST /v1/auth/register
//
//	@Summary	Create an account on the free tier
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RegisterRequest	true	"Credentials"
//	@Success	201		{object}	APIResponse{data=RegisterResponse}
//	@Failure	409		{object}	APIResponse
//	@Router		/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var input service.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	account, tokens, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, RegisterResponse{Account: account, Tokens: tokens})
}

// Login handles POST /v1/auth/login
//
//	@Summary	Log in to the dashboard
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		LoginRequest	true	"Credentials"
//	@Success	200		{object}	APIResponse{data=service.TokenPair}
//	@Failure	401		{object}	APIResponse
//	@Router		/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var input service.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tokenPair, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, tokenPair)
}

// RefreshToken handles POST /v1/auth/refresh
//
//	@Summary	Exchange a refresh token for a new pair
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RefreshRequest	true	"Refresh token"
//	@Success	200		{object}	APIResponse{data=service.TokenPair}
//	@Failure	401		{object}	APIResponse
//	@Router		/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var input service.RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tokenPair, err := h.authService.RefreshToken(c.Request.Context(), input.RefreshToken)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, tokenPair)
}
