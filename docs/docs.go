// Package docs registers the OpenAPI description of the read API.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/auth/login": {
            "post": {
                "summary": "Operator login",
                "security": [],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/auth/me": {
            "get": {"summary": "Operator identity behind the bearer token", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/models": {
            "get": {"summary": "List tested models", "responses": {"200": {"description": "OK"}}}
        },
        "/models/{model}/summary": {
            "get": {
                "summary": "Per-model overview",
                "parameters": [{"in": "path", "name": "model", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/models/{model}/prompts/{promptId}/records": {
            "get": {
                "summary": "Score records of one model and prompt in chronological order",
                "parameters": [
                    {"in": "path", "name": "model", "type": "string", "required": true},
                    {"in": "path", "name": "promptId", "type": "string", "required": true},
                    {"in": "query", "name": "from", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "to", "type": "string", "format": "date-time"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/models/{model}/prompts/{promptId}/latest": {
            "get": {
                "summary": "Most recent score record",
                "parameters": [
                    {"in": "path", "name": "model", "type": "string", "required": true},
                    {"in": "path", "name": "promptId", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/models/{model}/anomalies": {
            "get": {
                "summary": "Sentiment outliers against the trailing window",
                "parameters": [{"in": "path", "name": "model", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/changes": {
            "get": {
                "summary": "Change events",
                "parameters": [
                    {"in": "query", "name": "model", "type": "string"},
                    {"in": "query", "name": "promptId", "type": "string"},
                    {"in": "query", "name": "alertLevel", "type": "string", "enum": ["high", "medium", "low"]},
                    {"in": "query", "name": "since", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/changes/top": {
            "get": {
                "summary": "Largest recent drifts",
                "parameters": [{"in": "query", "name": "limit", "type": "integer"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/analytics/heatmap": {
            "get": {"summary": "Model by category average sentiment", "responses": {"200": {"description": "OK"}}}
        },
        "/analytics/correlation": {
            "get": {
                "summary": "Cross-category correlation, null when data is insufficient",
                "parameters": [
                    {"in": "query", "name": "a", "type": "string", "required": true},
                    {"in": "query", "name": "b", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/sessions": {
            "get": {
                "summary": "Recent test sessions",
                "parameters": [
                    {"in": "query", "name": "model", "type": "string"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}": {
            "get": {
                "summary": "One test session, live while running",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/catalog": {
            "get": {"summary": "Prompt catalog", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "operatorId": {"type": "string"}, "expiresAt": {"type": "integer"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "driftwatch API",
	Description:      "Read-only query surface over model stance scores, drift events and analytics",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
