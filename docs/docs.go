// Package docs registers the OpenAPI description served under /swagger/.
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
        "/rpc/decompose": {
            "post": {
                "description": "Splits url_string on whitespace and resolves series pages into ordered chapter addresses.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["novels"],
                "summary": "Expand novel addresses into chapters",
                "parameters": [
                    {
                        "description": "whitespace separated addresses",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.decomposeDTO"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.ChapterReference"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/rpc/translate": {
            "post": {
                "description": "Validates the request, triggers the workflow run and records the job as starting.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Start a translation job",
                "parameters": [
                    {"type": "string", "description": "caller identity", "name": "X-User-Id", "in": "header", "required": true},
                    {
                        "description": "job parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/entity.SubmitRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/rpc/cancel": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "description": "Only jobs in the caller's history can be canceled.",
                "summary": "Cancel a job",
                "parameters": [
                    {"type": "string", "description": "caller identity", "name": "X-User-Id", "in": "header", "required": true},
                    {
                        "description": "job id",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.cancelDTO"}
                    }
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/rpc/history": {
            "get": {
                "description": "Newest first, at most the configured history limit.",
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Recent jobs of the caller",
                "parameters": [
                    {"type": "string", "description": "caller identity", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.Job"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/rpc/history/delete": {
            "post": {
                "description": "Body is either the bare task id string or {\"task_id\": \"...\"}.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Remove a job from history",
                "parameters": [
                    {"type": "string", "description": "caller identity", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.deleteResp"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/rpc/progress/{id}": {
            "post": {
                "description": "A canceled job keeps its canceled status. Requires the shared callback secret.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Worker progress callback",
                "parameters": [
                    {"type": "string", "description": "Bearer <callback secret>", "name": "Authorization", "in": "header", "required": true},
                    {"type": "string", "description": "job id", "name": "id", "in": "path", "required": true},
                    {
                        "description": "fields to update",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/entity.ProgressUpdate"}
                    }
                ],
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        }
    },
    "definitions": {
        "entity.ChapterReference": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "entity.Job": {
            "type": "object",
            "properties": {
                "apiKeyName": {"type": "string"},
                "createdAt": {"type": "integer", "description": "epoch milliseconds"},
                "current": {"type": "integer"},
                "errorMessage": {"type": "string"},
                "model": {"type": "string"},
                "progress": {"type": "number"},
                "provider": {"type": "string"},
                "status": {"$ref": "#/definitions/entity.JobStatus"},
                "taskId": {"type": "string"},
                "total": {"type": "integer"},
                "urls": {"type": "array", "items": {"type": "string"}}
            }
        },
        "entity.JobStatus": {
            "type": "string",
            "enum": ["starting", "running", "completed", "failed", "canceled"]
        },
        "entity.ProgressUpdate": {
            "type": "object",
            "properties": {
                "current": {"type": "integer"},
                "error_message": {"type": "string"},
                "progress": {"type": "number"},
                "status": {"$ref": "#/definitions/entity.JobStatus"}
            }
        },
        "entity.SubmitRequest": {
            "type": "object",
            "required": ["batch_size", "concurrency", "encrypted_api_key", "folder_id", "model_id", "provider", "urls"],
            "properties": {
                "api_key_name": {"type": "string"},
                "batch_size": {"type": "integer"},
                "concurrency": {"type": "integer"},
                "encrypted_api_key": {"type": "string"},
                "folder_id": {"type": "string"},
                "model_id": {"type": "string"},
                "provider": {"type": "string"},
                "urls": {"type": "array", "minItems": 1, "items": {"type": "string"}}
            }
        },
        "httptransport.apiError": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "httptransport.cancelDTO": {
            "type": "object",
            "properties": {
                "workflow_id": {"type": "string"}
            }
        },
        "httptransport.decomposeDTO": {
            "type": "object",
            "properties": {
                "url_string": {"type": "string"}
            }
        },
        "httptransport.deleteResp": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"}
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
	Title:            "Novel Translate Service",
	Description:      "Novel address decomposition and translation job lifecycle.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
