package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SCMS API",
        "description": "School complaint management service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Complaints", "description": "Complaint CRUD and timeline"},
        {"name": "Workflow", "description": "Status transitions"},
        {"name": "Assignments", "description": "Manual and automatic assignment"},
        {"name": "Comments", "description": "Complaint discussion"},
        {"name": "Attachments", "description": "File uploads and signed downloads"},
        {"name": "Notifications", "description": "In-app notifications"},
        {"name": "Dashboard", "description": "Aggregate statistics"},
        {"name": "Exports", "description": "CSV and PDF exports"},
        {"name": "Users", "description": "User administration"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/complaints": {
            "get": {
                "tags": ["Complaints"],
                "summary": "List complaints visible to the caller",
                "responses": {
                    "200": {"description": "Paginated complaints"}
                }
            },
            "post": {
                "tags": ["Complaints"],
                "summary": "File a new complaint",
                "responses": {
                    "201": {"description": "Complaint created"},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/complaints/{id}": {
            "get": {
                "tags": ["Complaints"],
                "summary": "Complaint detail",
                "responses": {
                    "200": {"description": "Complaint"},
                    "403": {"description": "Not visible to caller"},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Complaints"],
                "summary": "Edit complaint fields",
                "responses": {
                    "200": {"description": "Updated complaint"}
                }
            },
            "delete": {
                "tags": ["Complaints"],
                "summary": "Soft delete a complaint",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Delete blocked in current status"}
                }
            }
        },
        "/complaints/{id}/status": {
            "patch": {
                "tags": ["Workflow"],
                "summary": "Move a complaint through the workflow",
                "responses": {
                    "200": {"description": "Transition applied"},
                    "422": {"description": "Transition not allowed"}
                }
            }
        },
        "/complaints/{id}/transitions": {
            "get": {
                "tags": ["Workflow"],
                "summary": "Statuses the caller may move this complaint to",
                "responses": {
                    "200": {"description": "Allowed transitions"}
                }
            }
        },
        "/complaints/{id}/assign": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Assign a complaint to a handler",
                "responses": {
                    "200": {"description": "Assigned"},
                    "409": {"description": "Assignee unavailable"}
                }
            },
            "delete": {
                "tags": ["Assignments"],
                "summary": "Remove the current assignee",
                "responses": {
                    "200": {"description": "Unassigned"}
                }
            }
        },
        "/complaints/{id}/auto-assign": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Run the automatic assignment rules",
                "responses": {
                    "200": {"description": "Assigned"},
                    "404": {"description": "No available assignee"}
                }
            }
        },
        "/complaints/{id}/comments": {
            "get": {
                "tags": ["Comments"],
                "summary": "List comments",
                "responses": {
                    "200": {"description": "Comments"}
                }
            },
            "post": {
                "tags": ["Comments"],
                "summary": "Add a comment",
                "responses": {
                    "201": {"description": "Comment created"}
                }
            }
        },
        "/complaints/{id}/attachments": {
            "get": {
                "tags": ["Attachments"],
                "summary": "List attachments",
                "responses": {
                    "200": {"description": "Attachments"}
                }
            },
            "post": {
                "tags": ["Attachments"],
                "summary": "Upload an attachment",
                "responses": {
                    "201": {"description": "Attachment stored"},
                    "400": {"description": "File rejected"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Complaint dashboard summary",
                "responses": {
                    "200": {"description": "Summary"},
                    "403": {"description": "Admins and leadership only"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications for the current user",
                "responses": {
                    "200": {"description": "Notifications"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "Paginated users"}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "responses": {
                    "201": {"description": "User created"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
