package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// ParseRequestDoc documents the POST /v1/parse body. outputSchema values are
// either a type name or {"type", "required", "description", "examples"}.
type ParseRequestDoc struct {
	InputData    string                 `json:"inputData" example:"Contact Jane Doe at jane@example.com or +1 415 555 0100"`
	OutputSchema map[string]interface{} `json:"outputSchema" swaggertype:"object,string" example:"name:name,email:email,phone:phone"`
	Instructions string                 `json:"instructions,omitempty" example:"Prefer the work email when several are present"`
}

// RegisterRequest represents the sign-up request body.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required" example:"dev@example.com"`
	Password string `json:"password" binding:"required" example:"securepassword123"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"dev@example.com"`
	Password string `json:"password" binding:"required" example:"securepassword123"`
}

// RefreshRequest represents the token refresh request body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// CreateKeyRequest represents the create API key request body.
type CreateKeyRequest struct {
	Name        string `json:"name" binding:"required" example:"production backend"`
	Environment string `json:"environment" binding:"required" enums:"live,test" example:"live"`
}

// CreateWebhookRequest represents the create webhook request body.
type CreateWebhookRequest struct {
	TargetURL string   `json:"targetUrl" binding:"required" example:"https://hooks.example.com/parserator"`
	Events    []string `json:"events" binding:"required" example:"parse.completed,parse.failed"`
}
