// Package docs registers the OpenAPI document served by the Swagger UI at
// /docs. Keep it in step with the @Router annotations on the handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/": {
            "get": {"tags": ["meta"], "summary": "API root info", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/health": {
            "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/health/db": {
            "get": {"tags": ["health"], "summary": "Database health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Database unreachable"}}}
        },
        "/health/collect": {
            "get": {"tags": ["health"], "summary": "Collection health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "No recent successful cycle"}}}
        },
        "/api/v1/tickets": {
            "get": {"tags": ["tickets"], "summary": "List tickets", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "enum": ["before_sale", "on_sale", "sold_out", "ended"], "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/ticket.Ticket"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }}
        },
        "/api/v1/tickets/{id}": {
            "get": {"tags": ["tickets"], "summary": "Get ticket", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ticket.Ticket"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }}
        },
        "/api/v1/collect": {
            "post": {"tags": ["tasks"], "summary": "Run collection cycle", "produces": ["application/json"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "502": {"description": "Listing source unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }}
        },
        "/api/v1/notifications/dispatch": {
            "post": {"tags": ["tasks"], "summary": "Dispatch notification", "consumes": ["application/json"], "produces": ["application/json"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.DispatchRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "502": {"description": "Delivery failed", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }}
        },
        "/api/v1/notifications/process-pending": {
            "post": {"tags": ["tasks"], "summary": "Process pending notifications", "produces": ["application/json"],
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.PendingResult"}}}}
        }
    },
    "definitions": {
        "ticket.Ticket": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "matchName": {"type": "string"},
                "matchDate": {"type": "string", "format": "date-time"},
                "homeTeam": {"type": "string"},
                "awayTeam": {"type": "string"},
                "venue": {"type": "string"},
                "saleStartDate": {"type": "string", "format": "date-time"},
                "saleEndDate": {"type": "string", "format": "date-time"},
                "saleStatus": {"type": "string", "enum": ["before_sale", "on_sale", "sold_out", "ended"]},
                "ticketTypes": {"type": "array", "items": {"type": "string"}},
                "ticketUrl": {"type": "string"},
                "notificationScheduled": {"type": "boolean"},
                "scrapedAt": {"type": "string", "format": "date-time"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "handler.DispatchRequest": {
            "type": "object",
            "properties": {
                "ticketId": {"type": "string"},
                "notificationType": {"type": "string", "enum": ["day_before", "hour_before", "minutes_before"]}
            }
        },
        "notifications.PendingResult": {
            "type": "object",
            "properties": {
                "processed": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                },
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Scoracle Away Tickets API",
	Description:      "Tracks away-match ticket sales and dispatches pre-sale notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
