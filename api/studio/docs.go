// Package studio holds the OpenAPI document served at /swagger/.
// Regenerate with: swag init -g internal/studio/http/router.go -o api/studio
package studio

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/minivisionary"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Create an account",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.AuthResponse"
                        }
                    },
                    "400": {
                        "description": "invalid_input",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "email_exists",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "429": {
                        "description": "rate_limited",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/visionsdk.SignupRequest"
                        }
                    }
                ]
            }
        },
        "/auth/login": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Log in",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.AuthResponse"
                        }
                    },
                    "401": {
                        "description": "invalid_credentials",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "429": {
                        "description": "rate_limited",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/visionsdk.LoginRequest"
                        }
                    }
                ]
            }
        },
        "/auth/logout": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Log out",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.OKResponse"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/me": {
            "get": {
                "tags": [
                    "Profile"
                ],
                "summary": "Current profile",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.ProfileResponse"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "patch": {
                "tags": [
                    "Profile"
                ],
                "summary": "Update profile",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.ProfileResponse"
                        }
                    },
                    "400": {
                        "description": "invalid_input",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/visionsdk.UpdateProfileRequest"
                        }
                    }
                ]
            }
        },
        "/poster/generate": {
            "post": {
                "tags": [
                    "Posters"
                ],
                "summary": "Generate a poster",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.PosterResponse"
                        }
                    },
                    "400": {
                        "description": "missing_prompt",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "402": {
                        "description": "insufficient_credits",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/visionsdk.PosterRequest"
                        }
                    }
                ]
            }
        },
        "/posters": {
            "get": {
                "tags": [
                    "Posters"
                ],
                "summary": "List posters",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.PostersResponse"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "integer",
                        "description": "max items (default 50)",
                        "name": "limit",
                        "in": "query"
                    }
                ]
            }
        },
        "/posters/{id}": {
            "delete": {
                "tags": [
                    "Posters"
                ],
                "summary": "Delete a poster",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.OKResponse"
                        }
                    },
                    "404": {
                        "description": "not_found",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "poster id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/payments/products": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Product catalog",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.ProductsResponse"
                        }
                    }
                }
            }
        },
        "/payments/checkout": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Start checkout",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.CheckoutResponse"
                        }
                    },
                    "400": {
                        "description": "invalid_sku or invalid_input",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/visionsdk.CheckoutRequest"
                        }
                    }
                ]
            }
        },
        "/payments/session/{id}": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Checkout session status",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.CheckoutStatus"
                        }
                    },
                    "404": {
                        "description": "not_found",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "checkout session id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/payments/wallet": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Wallet",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.Wallet"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/receipts/{id}": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Receipt",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.ReceiptResponse"
                        }
                    },
                    "404": {
                        "description": "not_found",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "receipt id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/payments/subscription/cancel": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Cancel ad-free subscription",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.ProfileResponse"
                        }
                    },
                    "401": {
                        "description": "unauthenticated",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Payment provider webhook",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.OKResponse"
                        }
                    },
                    "400": {
                        "description": "invalid_signature",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "t=<unix>,v1=<hex hmac-sha256>",
                        "name": "X-Visionary-Signature",
                        "in": "header",
                        "required": true
                    }
                ]
            }
        },
        "/payments/simulate/{id}": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Simulated hosted checkout",
                "parameters": [
                    {
                        "type": "string",
                        "description": "checkout session id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "303": {
                        "description": "redirect to success_url?session_id={id}"
                    },
                    "404": {
                        "description": "not_found",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/livez": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness probe",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness probe",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/visionsdk.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "degraded",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "httpx.ErrorBody": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "error": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "visionsdk.Profile": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "display_name": {
                    "type": "string"
                },
                "credits": {
                    "type": "integer"
                },
                "ad_free": {
                    "type": "boolean"
                },
                "plan": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "visionsdk.SignupRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "display_name": {
                    "type": "string"
                }
            }
        },
        "visionsdk.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "visionsdk.AuthResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "token": {
                    "type": "string"
                },
                "user": {
                    "$ref": "#/definitions/visionsdk.Profile"
                }
            }
        },
        "visionsdk.ProfileResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "user": {
                    "$ref": "#/definitions/visionsdk.Profile"
                }
            }
        },
        "visionsdk.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "display_name": {
                    "type": "string"
                }
            }
        },
        "visionsdk.PosterRequest": {
            "type": "object",
            "properties": {
                "prompt": {
                    "type": "string"
                },
                "style": {
                    "type": "string"
                },
                "size": {
                    "type": "string"
                }
            }
        },
        "visionsdk.PosterResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "id": {
                    "type": "string"
                },
                "url": {
                    "type": "string"
                },
                "key": {
                    "type": "string"
                },
                "prompt": {
                    "type": "string"
                },
                "width": {
                    "type": "integer"
                },
                "height": {
                    "type": "integer"
                },
                "credits": {
                    "type": "integer"
                }
            }
        },
        "visionsdk.Poster": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "prompt": {
                    "type": "string"
                },
                "style": {
                    "type": "string"
                },
                "size": {
                    "type": "string"
                },
                "url": {
                    "type": "string"
                },
                "width": {
                    "type": "integer"
                },
                "height": {
                    "type": "integer"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "visionsdk.PostersResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/visionsdk.Poster"
                    }
                }
            }
        },
        "visionsdk.Product": {
            "type": "object",
            "properties": {
                "sku": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "desc": {
                    "type": "string"
                },
                "credits": {
                    "type": "integer"
                },
                "price": {
                    "type": "number"
                },
                "amount_cents": {
                    "type": "integer"
                },
                "currency": {
                    "type": "string"
                },
                "mode": {
                    "type": "string"
                }
            }
        },
        "visionsdk.ProductsResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/visionsdk.Product"
                    }
                }
            }
        },
        "visionsdk.CheckoutRequest": {
            "type": "object",
            "properties": {
                "sku": {
                    "type": "string"
                },
                "success_url": {
                    "type": "string"
                },
                "cancel_url": {
                    "type": "string"
                }
            }
        },
        "visionsdk.CheckoutResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "url": {
                    "type": "string"
                },
                "session_id": {
                    "type": "string"
                }
            }
        },
        "visionsdk.CheckoutStatus": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "status": {
                    "type": "string"
                },
                "customer_email": {
                    "type": "string"
                }
            }
        },
        "visionsdk.Receipt": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "sku": {
                    "type": "string"
                },
                "credits": {
                    "type": "integer"
                },
                "amount": {
                    "type": "number"
                },
                "currency": {
                    "type": "string"
                },
                "provider_id": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "visionsdk.ReceiptResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "receipt": {
                    "$ref": "#/definitions/visionsdk.Receipt"
                }
            }
        },
        "visionsdk.Wallet": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "credits": {
                    "type": "integer"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "receipts": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/visionsdk.Receipt"
                    }
                }
            }
        },
        "visionsdk.OKResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                }
            }
        },
        "visionsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "uptime": {
                    "type": "string"
                },
                "version": {
                    "type": "string"
                },
                "checks": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Session token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Mini-Visionary Studio API",
	Description:      "Accounts, credits, poster generation and payments for the Mini-Visionary poster app.\n\nEvery response carries \"ok\". Failures add \"error\" (a stable code) and \"message\".",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
