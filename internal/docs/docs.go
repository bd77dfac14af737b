// Package docs registers the Swagger document served at /swagger. It mirrors
// the swag annotations on the handlers; keep both in sync.
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
        "/auth/sync": {
            "post": {
                "description": "Create or update the local user for a provider identity and return a session token. Default categories are seeded on first sync.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sync identity",
                "parameters": [
                    {"description": "Provider identity", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing user synced", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                    "201": {"description": "New user created", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Get user profile",
                "responses": {
                    "200": {"description": "User profile", "schema": {"$ref": "#/definitions/handlers.UserResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Update user profile",
                "parameters": [
                    {"description": "Profile fields", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated profile", "schema": {"$ref": "#/definitions/handlers.UserResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "List transactions",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "sort", "in": "query"},
                    {"type": "string", "name": "type", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Transactions"},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Create a transaction",
                "parameters": [
                    {"description": "Transaction details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TransactionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Transaction created", "schema": {"$ref": "#/definitions/models.Transaction"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/transactions/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Get summary",
                "parameters": [
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Summary", "schema": {"$ref": "#/definitions/aggregate.Summary"}},
                    "400": {"description": "Invalid date range", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/transactions/categories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Get category breakdown",
                "parameters": [
                    {"type": "string", "name": "type", "in": "query"},
                    {"type": "string", "name": "start_date", "in": "query"},
                    {"type": "string", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Breakdown", "schema": {"type": "array", "items": {"$ref": "#/definitions/aggregate.CategoryTotal"}}}
                }
            }
        },
        "/transactions/trend": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Get monthly trend",
                "responses": {
                    "200": {"description": "Trend", "schema": {"type": "array", "items": {"$ref": "#/definitions/aggregate.MonthlyTotal"}}}
                }
            }
        },
        "/transactions/series": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Get monthly series",
                "parameters": [
                    {"type": "integer", "name": "months", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Series", "schema": {"type": "array", "items": {"$ref": "#/definitions/aggregate.MonthBucket"}}}
                }
            }
        },
        "/transactions/analytics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Get analytics overview",
                "responses": {
                    "200": {"description": "Overview", "schema": {"$ref": "#/definitions/services.Overview"}}
                }
            }
        },
        "/transactions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Get transaction by ID",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Transaction details", "schema": {"$ref": "#/definitions/models.Transaction"}},
                    "403": {"description": "Owned by another user", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Transaction not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Update a transaction",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"description": "Transaction details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TransactionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated transaction", "schema": {"$ref": "#/definitions/models.Transaction"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Delete a transaction",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Transaction deleted", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}
                }
            }
        },
        "/categories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Get all categories",
                "parameters": [{"type": "string", "name": "type", "in": "query"}],
                "responses": {
                    "200": {"description": "List of categories", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Category"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Create a category",
                "parameters": [
                    {"description": "Category details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateCategoryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Category created", "schema": {"$ref": "#/definitions/models.Category"}},
                    "409": {"description": "Category already exists", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Get category by ID",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Category details", "schema": {"$ref": "#/definitions/models.Category"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Update a category",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"description": "Category fields", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateCategoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated category", "schema": {"$ref": "#/definitions/models.Category"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Delete a category",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Category deleted", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}
                }
            }
        },
        "/internal/reports/run": {
            "post": {
                "produces": ["application/json"],
                "tags": ["internal"],
                "summary": "Run monthly reports",
                "parameters": [{"type": "string", "name": "X-API-Key", "in": "header", "required": true}],
                "responses": {
                    "200": {"description": "Run summary", "schema": {"$ref": "#/definitions/services.ReportRun"}},
                    "401": {"description": "Invalid API key", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "aggregate.CategoryTotal": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "count": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "aggregate.MonthBucket": {
            "type": "object",
            "properties": {
                "expense": {"type": "integer"},
                "income": {"type": "integer"},
                "month": {"type": "integer"},
                "year": {"type": "integer"}
            }
        },
        "aggregate.MonthlyTotal": {
            "type": "object",
            "properties": {
                "month": {"type": "integer"},
                "total": {"type": "integer"},
                "type": {"type": "string"},
                "year": {"type": "integer"}
            }
        },
        "aggregate.Summary": {
            "type": "object",
            "properties": {
                "balance": {"type": "integer"},
                "expenses": {"type": "integer"},
                "income": {"type": "integer"}
            }
        },
        "handlers.AuthResponse": {
            "type": "object",
            "properties": {
                "created": {"type": "boolean"},
                "expires_at": {"type": "string"},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/handlers.UserResponse"}
            }
        },
        "handlers.CreateCategoryRequest": {
            "type": "object",
            "required": ["name", "type"],
            "properties": {
                "color": {"type": "string"},
                "icon": {"type": "string"},
                "name": {"type": "string", "maxLength": 100},
                "type": {"type": "string", "enum": ["income", "expense"]}
            }
        },
        "handlers.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}},
                "message": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handlers.ErrorDetail"}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "handlers.SyncRequest": {
            "type": "object",
            "required": ["email", "provider_uid"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "provider_uid": {"type": "string"}
            }
        },
        "handlers.TransactionRequest": {
            "type": "object",
            "required": ["description", "type"],
            "properties": {
                "amount": {"type": "integer"},
                "category": {"type": "string"},
                "date": {"type": "string"},
                "description": {"type": "string", "maxLength": 500},
                "notes": {"type": "string"},
                "type": {"type": "string", "enum": ["income", "expense"]}
            }
        },
        "handlers.UpdateCategoryRequest": {
            "type": "object",
            "properties": {
                "color": {"type": "string"},
                "icon": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "handlers.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "email_notifications": {"type": "boolean"},
                "monthly_report": {"type": "boolean"},
                "name": {"type": "string"}
            }
        },
        "handlers.UserResponse": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "email_notifications": {"type": "boolean"},
                "id": {"type": "string"},
                "last_login_at": {"type": "string"},
                "monthly_report": {"type": "boolean"},
                "name": {"type": "string"}
            }
        },
        "models.Category": {
            "type": "object",
            "properties": {
                "color": {"type": "string"},
                "created_at": {"type": "string"},
                "icon": {"type": "string"},
                "id": {"type": "string"},
                "is_default": {"type": "boolean"},
                "name": {"type": "string"},
                "type": {"type": "string"},
                "updated_at": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "models.Transaction": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"},
                "category": {"type": "string"},
                "created_at": {"type": "string"},
                "date": {"type": "string"},
                "description": {"type": "string"},
                "id": {"type": "string"},
                "notes": {"type": "string"},
                "type": {"type": "string"},
                "updated_at": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "services.Overview": {
            "type": "object",
            "properties": {
                "expense_categories": {"type": "array", "items": {"$ref": "#/definitions/aggregate.CategoryTotal"}},
                "income_categories": {"type": "array", "items": {"$ref": "#/definitions/aggregate.CategoryTotal"}},
                "monthly_trends": {"type": "array", "items": {"$ref": "#/definitions/aggregate.MonthlyTotal"}},
                "totals": {"$ref": "#/definitions/aggregate.Summary"}
            }
        },
        "services.ReportRun": {
            "type": "object",
            "properties": {
                "failed": {"type": "integer"},
                "month": {"type": "integer"},
                "sent": {"type": "integer"},
                "year": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5000",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "BudgetBuddy API",
	Description:      "BudgetBuddy tracks income and expenses and serves summaries, category breakdowns and monthly trends.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
