// Package docs registers the swagger specification served at /swagger.
// Regenerate with `swag init -g cmd/api/main.go -o internal/docs` after
// changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type \"Bearer\" followed by a space and JWT token."
        }
    },
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "responses": {"201": {"description": "User registered and token generated"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in",
                "responses": {"200": {"description": "Token generated"}}
            }
        },
        "/plans": {
            "post": {
                "tags": ["plans"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a debt plan",
                "responses": {"201": {"description": "Plan created"}}
            },
            "get": {
                "tags": ["plans"],
                "security": [{"BearerAuth": []}],
                "summary": "Get plans",
                "responses": {"200": {"description": "Paginated plans"}}
            }
        },
        "/plans/{id}": {
            "get": {
                "tags": ["plans"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a plan",
                "responses": {"200": {"description": "Plan"}}
            },
            "put": {
                "tags": ["plans"],
                "security": [{"BearerAuth": []}],
                "summary": "Update a plan",
                "responses": {"200": {"description": "Updated plan"}}
            },
            "delete": {
                "tags": ["plans"],
                "security": [{"BearerAuth": []}],
                "summary": "Delete a plan",
                "responses": {"204": {"description": "Plan deleted"}}
            }
        },
        "/plans/{id}/payoff-order": {
            "post": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Resolve payoff order",
                "responses": {"200": {"description": "Number of loans ranked"}}
            }
        },
        "/plans/{id}/schedule": {
            "post": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Generate a schedule",
                "responses": {"201": {"description": "Number of months generated"}}
            },
            "get": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a schedule",
                "responses": {"200": {"description": "Paginated schedule"}}
            }
        },
        "/plans/{id}/schedule/regenerate": {
            "post": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Regenerate a schedule",
                "responses": {"200": {"description": "Number of months generated"}}
            }
        },
        "/plans/{id}/schedule/current": {
            "get": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Get the current schedule month",
                "responses": {"200": {"description": "Schedule month"}}
            }
        },
        "/plans/{id}/schedule/{month}": {
            "get": {
                "tags": ["schedule"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a schedule month",
                "responses": {"200": {"description": "Schedule month"}}
            }
        },
        "/plans/{id}/progress": {
            "get": {
                "tags": ["progress"],
                "security": [{"BearerAuth": []}],
                "summary": "Get plan progress",
                "responses": {"200": {"description": "Plan progress"}}
            }
        },
        "/plans/{id}/completion": {
            "post": {
                "tags": ["progress"],
                "security": [{"BearerAuth": []}],
                "summary": "Check plan completion",
                "responses": {"200": {"description": "Completion state"}}
            }
        },
        "/plans/{id}/payments": {
            "get": {
                "tags": ["payments"],
                "security": [{"BearerAuth": []}],
                "summary": "Get plan payments",
                "responses": {"200": {"description": "Paginated payments"}}
            }
        },
        "/plans/{id}/payments/summary": {
            "get": {
                "tags": ["payments"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a plan payment summary",
                "responses": {"200": {"description": "Per-method totals"}}
            }
        },
        "/plans/{id}/loans/{loan_id}/payments": {
            "post": {
                "tags": ["payments"],
                "security": [{"BearerAuth": []}],
                "summary": "Record a payment",
                "responses": {"201": {"description": "Payment recorded"}}
            }
        },
        "/loans": {
            "post": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Create a loan",
                "responses": {"201": {"description": "Loan created"}}
            },
            "get": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Get loans",
                "responses": {"200": {"description": "Paginated loans"}}
            }
        },
        "/loans/estimate-minimum": {
            "post": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Estimate a minimum payment",
                "responses": {"200": {"description": "Estimated minimum payment"}}
            }
        },
        "/loans/{id}": {
            "get": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a loan",
                "responses": {"200": {"description": "Loan"}}
            },
            "put": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Update a loan",
                "responses": {"200": {"description": "Updated loan"}}
            },
            "delete": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Delete a loan",
                "responses": {"204": {"description": "Loan deleted"}}
            }
        },
        "/loans/{id}/attach/{plan_id}": {
            "post": {
                "tags": ["loans"],
                "security": [{"BearerAuth": []}],
                "summary": "Attach a loan to a plan",
                "responses": {"200": {"description": "Attached loan"}}
            }
        },
        "/loans/{id}/payments": {
            "get": {
                "tags": ["payments"],
                "security": [{"BearerAuth": []}],
                "summary": "Get loan payments",
                "responses": {"200": {"description": "Paginated payments"}}
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["payments"],
                "security": [{"BearerAuth": []}],
                "summary": "Get a payment",
                "responses": {"200": {"description": "Payment"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Debtwise API",
	Description:      "Debtwise is a debt payoff planner that simulates snowball and avalanche schedules across multiple loans and reconciles them against real-world payments.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
