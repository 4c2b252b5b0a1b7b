package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Agenda API",
        "description": "Scheduling service for educational events: request workflow, calendar synchronisation, availability and material collections.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Requests", "description": "Event request workflow"},
        {"name": "Calendar Events", "description": "External calendar sync state"},
        {"name": "Availability", "description": "Presenter conflict checking"},
        {"name": "Purchases", "description": "Material purchase registry"},
        {"name": "Collections", "description": "Material collection classification"}
    ],
    "paths": {
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List event requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "project_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit an event request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get event request detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/decision": {
            "post": {
                "tags": ["Requests"],
                "summary": "Approve or reject a pending request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideRequestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/cancel": {
            "post": {
                "tags": ["Requests"],
                "summary": "Cancel an event request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CancelRequestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already terminal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/resync": {
            "post": {
                "tags": ["Calendar Events"],
                "summary": "Schedule a calendar rebuild for a request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not syncable in current status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar-events": {
            "get": {
                "tags": ["Calendar Events"],
                "summary": "List calendar events and their sync state",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "sync_status", "in": "query", "type": "string", "description": "Comma separated sync statuses"},
                    {"name": "request_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability/conflicts": {
            "get": {
                "tags": ["Availability"],
                "summary": "List conflicts for presenters in a time window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "presenter_ids", "in": "query", "required": true, "type": "string", "description": "Comma separated presenter IDs"},
                    {"name": "starts_at", "in": "query", "required": true, "type": "string", "description": "RFC3339"},
                    {"name": "ends_at", "in": "query", "required": true, "type": "string", "description": "RFC3339"},
                    {"name": "exclude_request_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/purchases": {
            "post": {
                "tags": ["Purchases"],
                "summary": "Register a material purchase",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePurchaseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/purchases/{id}": {
            "get": {
                "tags": ["Purchases"],
                "summary": "Get purchase detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Purchases"],
                "summary": "Update a material purchase",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePurchaseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/collections": {
            "get": {
                "tags": ["Collections"],
                "summary": "List material collections",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "year", "in": "query", "type": "string"},
                    {"name": "material_type", "in": "query", "type": "string", "description": "STUDENT or TEACHER"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/collections/export": {
            "get": {
                "tags": ["Collections"],
                "summary": "Download collections as CSV",
                "produces": ["text/csv"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "year", "in": "query", "type": "string"},
                    {"name": "material_type", "in": "query", "type": "string", "description": "STUDENT or TEACHER"}
                ],
                "responses": {
                    "200": {"description": "CSV payload", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "CreateRequestRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "project_id": {"type": "string"},
                "municipality_id": {"type": "string"},
                "event_type_id": {"type": "string"},
                "starts_at": {"type": "string", "format": "date-time"},
                "ends_at": {"type": "string", "format": "date-time"},
                "presenter_ids": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            },
            "required": ["title", "project_id", "municipality_id", "event_type_id", "starts_at", "ends_at", "presenter_ids"]
        },
        "DecideRequestRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVE", "REJECT"]},
                "justification": {"type": "string"}
            },
            "required": ["decision"]
        },
        "CancelRequestRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "CreatePurchaseRequest": {
            "type": "object",
            "properties": {
                "product_id": {"type": "string"},
                "municipality_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "purchased_on": {"type": "string", "example": "2026-01-15"},
                "will_use_in_year": {"type": "string", "example": "2027"},
                "used_in_year": {"type": "string", "example": "2026"}
            },
            "required": ["product_id", "municipality_id", "quantity", "purchased_on"]
        },
        "UpdatePurchaseRequest": {
            "type": "object",
            "properties": {
                "product_id": {"type": "string"},
                "municipality_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "purchased_on": {"type": "string", "example": "2026-01-15"},
                "will_use_in_year": {"type": "string", "example": "2027"},
                "used_in_year": {"type": "string", "example": "2026"}
            },
            "required": ["product_id", "municipality_id", "quantity", "purchased_on"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
