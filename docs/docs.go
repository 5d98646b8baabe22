// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthReport"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.HealthReport"}}
                }
            }
        },
        "/v1/parse": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Runs the two-stage Architect/Extractor pipeline over inputData using outputSchema.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["parse"],
                "summary": "Parse unstructured text into structured JSON",
                "parameters": [
                    {"description": "Parse request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.ParseRequestDoc"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "422": {"description": "Unprocessable Entity"},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/v1/usage": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["usage"],
                "summary": "Current month usage for the calling API key's account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/usage/export": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["text/csv"],
                "tags": ["usage"],
                "summary": "Download usage history",
                "parameters": [
                    {"type": "string", "default": "csv", "description": "csv or xlsx", "name": "format", "in": "query"},
                    {"type": "string", "description": "start date, YYYY-MM-DD (default: 90 days ago)", "name": "since", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/results/{requestId}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Presigned download link for an archived parse result",
                "parameters": [
                    {"type": "string", "description": "request id returned in metadata.requestId", "name": "requestId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Create an account on the free tier",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in to the dashboard",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/auth/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Exchange a refresh token for a new pair",
                "parameters": [
                    {"description": "Refresh token", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/keys": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["keys"],
                "summary": "List API keys",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "The plaintext secret is returned once and never stored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["keys"],
                "summary": "Create an API key",
                "parameters": [
                    {"description": "Key details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateKeyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/keys/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["keys"],
                "summary": "Deactivate an API key",
                "parameters": [{"type": "string", "description": "Key ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/webhooks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "List webhooks",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "The signing secret is returned once. Deliveries carry X-Parserator-Signature-256.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Subscribe a webhook",
                "parameters": [
                    {"description": "Subscription", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateWebhookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/v1/webhooks/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["webhooks"],
                "summary": "Delete a webhook",
                "parameters": [{"type": "string", "description": "Webhook ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true}
            }
        },
        "handler.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/handler.APIError"}
            }
        },
        "handler.HealthReport": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "services": {"type": "object", "additionalProperties": true},
                "timestamp": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "handler.ParseRequestDoc": {
            "type": "object",
            "properties": {
                "inputData": {"type": "string", "example": "Contact Jane Doe at jane@example.com or +1 415 555 0100"},
                "outputSchema": {"type": "object", "additionalProperties": {"type": "string"}},
                "instructions": {"type": "string"}
            }
        },
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.RefreshRequest": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {"refreshToken": {"type": "string"}}
        },
        "handler.CreateKeyRequest": {
            "type": "object",
            "required": ["name", "environment"],
            "properties": {
                "name": {"type": "string"},
                "environment": {"type": "string", "enum": ["live", "test"]}
            }
        },
        "handler.CreateWebhookRequest": {
            "type": "object",
            "required": ["targetUrl", "events"],
            "properties": {
                "targetUrl": {"type": "string"},
                "events": {"type": "array", "items": {"type": "string"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Parserator API",
	Description:      "Two-stage LLM parsing of unstructured text into structured JSON.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
