package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Registration API",
        "description": "School course registration backend with admin-adjudicated add/drop requests",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Classes", "description": "Class catalog management"},
        {"name": "Registrations", "description": "Add/drop request workflow"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List class offerings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "period", "in": "query", "type": "integer"},
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class offering (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher already booked in period"}
                }
            }
        },
        "/classes/available": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes open to the student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get class offering",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Classes"],
                "summary": "Delete class offering (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Class has enrollments or pending requests"}
                }
            }
        },
        "/classes/{id}/roster": {
            "get": {
                "tags": ["Classes"],
                "summary": "Export class roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster document"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Submit add/drop request (student)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate, capacity or period conflict"}
                }
            },
            "get": {
                "tags": ["Registrations"],
                "summary": "List pending requests (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "kind", "in": "query", "required": true, "type": "string", "enum": ["ADD", "DROP"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/{id}/accept": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Accept pending request (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Already settled"},
                    "409": {"description": "Capacity or period conflict, or retryable contention"}
                }
            }
        },
        "/registrations/{id}/decline": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Decline pending request (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Already settled"}
                }
            }
        },
        "/students/me/periods": {
            "get": {
                "tags": ["Registrations"],
                "summary": "List the student's free periods",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "post": {
                "tags": ["Users"],
                "summary": "Create a user account (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Username already taken"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "CreateClassRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "teacher_id": {"type": "string"},
                "period": {"type": "integer"},
                "total_capacity": {"type": "integer"}
            },
            "required": ["name", "teacher_id", "period"]
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "TEACHER", "STUDENT"]}
            },
            "required": ["username", "password", "full_name", "role"]
        },
        "SubmitRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["ADD", "DROP"]},
                "class_id": {"type": "string"}
            },
            "required": ["kind", "class_id"]
        },
        "EnrollmentRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string"},
                "class_id": {"type": "string"},
                "student_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "ClassOffering": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "teacher_id": {"type": "string"},
                "period": {"type": "integer"},
                "total_capacity": {"type": "integer"},
                "seats_available": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
