// Package docs holds the OpenAPI description served under /swagger.
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
        "/": {
            "get": {
                "produces": ["application/json"],
                "summary": "API banner",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Storage connectivity check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/listings": {
            "get": {
                "produces": ["application/json"],
                "summary": "List active listings, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Listing"}}}
                }
            },
            "post": {
                "description": "Accepts multipart/form-data with up to five files under \"images\", or a JSON draft without images.",
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json"],
                "summary": "Create a listing",
                "parameters": [
                    {"type": "string", "description": "Title", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "description": "Description", "name": "description", "in": "formData", "required": true},
                    {"type": "string", "description": "Price", "name": "price", "in": "formData", "required": true},
                    {"type": "string", "description": "Seller", "name": "seller", "in": "formData", "required": true},
                    {"type": "string", "description": "Category", "name": "category", "in": "formData"},
                    {"type": "string", "description": "Contact", "name": "contact", "in": "formData"},
                    {"type": "string", "description": "Condition", "name": "condition", "in": "formData"},
                    {"type": "file", "description": "Images", "name": "images", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Listing"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/listings/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get an active listing",
                "parameters": [
                    {"type": "string", "description": "Listing ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Listing"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/listings/{id}/sold": {
            "put": {
                "produces": ["application/json"],
                "summary": "Mark a listing as sold",
                "parameters": [
                    {"type": "string", "description": "Listing ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/search": {
            "get": {
                "produces": ["application/json"],
                "summary": "Search active listings",
                "parameters": [
                    {"type": "string", "description": "Text matched against title, description and seller", "name": "q", "in": "query"},
                    {"type": "string", "description": "Exact category; todos or all matches every category", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Listing"}}}
                }
            }
        },
        "/uploads/{name}": {
            "get": {
                "summary": "Download a stored image",
                "parameters": [
                    {"type": "string", "description": "Object key", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.errorEnvelope"},
                "request_id": {"type": "string"}
            }
        },
        "model.Listing": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "category": {"type": "string"},
                "condition": {"type": "string"},
                "contact": {"type": "string"},
                "created_at": {"type": "string"},
                "description": {"type": "string"},
                "id": {"type": "string"},
                "images": {"type": "array", "items": {"type": "string"}},
                "price": {"type": "string", "example": "1250.9"},
                "seller": {"type": "string"},
                "sold_at": {"type": "string"},
                "title": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Classificados API",
	Description:      "Listings marketplace backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
