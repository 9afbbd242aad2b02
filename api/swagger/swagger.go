package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DentaLink API",
        "description": "Marketplace API connecting dental clinics with fabrication labs",
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
        {"name": "Auth", "description": "Registration, sessions and password reset"},
        {"name": "Cases", "description": "Case lifecycle from submission to delivery"},
        {"name": "Labs", "description": "Lab directory, favorites and recommendations"},
        {"name": "Messages", "description": "Per-case messaging"},
        {"name": "Files", "description": "Case file attachments"},
        {"name": "Reviews", "description": "Lab reviews and rating"},
        {"name": "Dashboard", "description": "Role dashboards and exports"},
        {"name": "Profile", "description": "Account and role profile management"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a clinic or lab account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue a token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or expired refresh token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "security": [{"BearerAuth": []}],
                "summary": "Revoke a refresh token",
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/auth/request-reset": {
            "post": {
                "tags": ["Auth"],
                "summary": "Request a password reset code",
                "responses": {
                    "200": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Reset a password with a one-time code",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or expired code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases": {
            "post": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Submit a case to the pool or a specific lab",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}": {
            "get": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Case detail with files, messages and history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a participant", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}/decision": {
            "post": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Accept or reject a case (claims pool cases atomically)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Claimed by another lab", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}/status": {
            "patch": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Advance case status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Illegal transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}/cancel": {
            "post": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Cancel a case before work starts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Outside cancellation window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}/messages": {
            "get": {
                "tags": ["Messages"],
                "security": [{"BearerAuth": []}],
                "summary": "Case message thread",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Messages"],
                "security": [{"BearerAuth": []}],
                "summary": "Post a message to a case",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/{id}/files": {
            "get": {
                "tags": ["Files"],
                "security": [{"BearerAuth": []}],
                "summary": "List case attachments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Files"],
                "security": [{"BearerAuth": []}],
                "summary": "Upload a case attachment",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Rejected file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}": {
            "get": {
                "tags": ["Files"],
                "security": [{"BearerAuth": []}],
                "summary": "Download an attachment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cases/export": {
            "get": {
                "tags": ["Dashboard"],
                "security": [{"BearerAuth": []}],
                "summary": "Export case register as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File content"}
                }
            }
        },
        "/clinic/cases": {
            "get": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Clinic case list",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lab/cases/incoming": {
            "get": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Claimable pool and targeted cases",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lab/cases/jobs": {
            "get": {
                "tags": ["Cases"],
                "security": [{"BearerAuth": []}],
                "summary": "Accepted jobs for the lab",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/labs": {
            "get": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Filterable lab directory",
                "parameters": [
                    {"name": "specialties", "in": "query", "type": "string"},
                    {"name": "maxTurnaround", "in": "query", "type": "integer"},
                    {"name": "minRating", "in": "query", "type": "number"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/labs/recommended": {
            "get": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Top-rated labs for a specialty",
                "parameters": [
                    {"name": "specialty", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/labs/{labId}": {
            "get": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Lab directory profile",
                "parameters": [
                    {"name": "labId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/labs/{labId}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "security": [{"BearerAuth": []}],
                "summary": "Reviews for a lab",
                "parameters": [
                    {"name": "labId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviews": {
            "post": {
                "tags": ["Reviews"],
                "security": [{"BearerAuth": []}],
                "summary": "Review a delivered case",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lab/reviews": {
            "get": {
                "tags": ["Reviews"],
                "security": [{"BearerAuth": []}],
                "summary": "Reviews received by the lab",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clinic/favorites": {
            "get": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Favorite labs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Add a favorite lab",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clinic/favorites/{labId}": {
            "delete": {
                "tags": ["Labs"],
                "security": [{"BearerAuth": []}],
                "summary": "Remove a favorite lab",
                "parameters": [
                    {"name": "labId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/clinic/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "security": [{"BearerAuth": []}],
                "summary": "Clinic dashboard",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lab/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "security": [{"BearerAuth": []}],
                "summary": "Lab dashboard",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profile": {
            "get": {
                "tags": ["Profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Account with role profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Update display name",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clinic/profile": {
            "put": {
                "tags": ["Profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Update clinic profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lab/profile": {
            "put": {
                "tags": ["Profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Update lab profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "name", "role"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["clinic", "lab"]}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"}
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
