// Package docs holds the OpenAPI document served by the swagger build.
// Regenerate with `swag init -g cmd/webhookd/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "webhookd maintainers"
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
        "/webhook": {
            "post": {
                "description": "Validates the shared token and the payload, then queues the event for the background worker.",
                "consumes": ["application/json"],
                "produces": ["text/plain"],
                "tags": ["webhooks"],
                "summary": "Receive a GitLab webhook",
                "parameters": [
                    {"type": "string", "description": "Shared webhook secret", "name": "X-Gitlab-Token", "in": "header"},
                    {"type": "string", "description": "GitLab event name, e.g. Merge Request Hook", "name": "X-Gitlab-Event", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Queue depth, lifecycle state and pending deferred checks.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Worker status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 403},
                "error": {"type": "string", "example": "invalid X-Gitlab-Token header"}
            }
        },
        "types.DeferredCheckStatus": {
            "type": "object",
            "properties": {
                "key": {"type": "string", "example": "ABC-12"},
                "scheduled_at_unix": {"type": "integer", "example": 1700000005},
                "tries": {"type": "integer", "example": 2}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "running"},
                "queue_depth": {"type": "integer", "example": 0},
                "processed": {"type": "integer", "example": 42},
                "dropped": {"type": "integer", "example": 0},
                "handlers": {"type": "array", "items": {"type": "string"}},
                "deferred_checks": {"type": "array", "items": {"$ref": "#/definitions/types.DeferredCheckStatus"}},
                "started_at_unix": {"type": "integer", "example": 1700000000}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "webhookd API",
	Description:      "Receives GitLab webhooks and reconciles Jira issues in the background.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
