package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Placement API",
        "description": "Eligibility snapshots, overrides and round-funnel progression",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Roster views and placement status"},
        {"name": "Snapshots", "description": "Eligibility snapshots"},
        {"name": "Overrides", "description": "Dream company and manual overrides"},
        {"name": "Rounds", "description": "Hiring round funnel"},
        {"name": "Exports", "description": "Downloadable reports"}
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
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "batch", "in": "query", "type": "integer"},
                    {"name": "specialization", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/placement": {
            "patch": {
                "tags": ["Students"],
                "summary": "Apply an externally resolved placement decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePlacementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/registrations/extract": {
            "post": {
                "tags": ["Students"],
                "summary": "Resolve raw registration numbers to student ids",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExtractRegistrationsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/companies/{companyId}/batches/{year}/snapshot": {
            "get": {
                "tags": ["Snapshots"],
                "summary": "Get the eligibility snapshot for a company and batch",
                "parameters": [
                    {"name": "companyId", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Snapshots"],
                "summary": "Calculate the eligibility snapshot",
                "parameters": [
                    {"name": "companyId", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Snapshot already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Snapshots"],
                "summary": "Recalculate the snapshot, replacing any prior one",
                "parameters": [
                    {"name": "companyId", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/{id}/overrides/dream": {
            "post": {
                "tags": ["Overrides"],
                "summary": "Re-admit a placed student using their dream company privilege",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Privilege already consumed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/{id}/overrides/manual": {
            "post": {
                "tags": ["Overrides"],
                "summary": "Admit a student by administrator decision with a mandatory reason",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/snapshots/{id}/overrides/{studentId}": {
            "delete": {
                "tags": ["Overrides"],
                "summary": "Reverse a student's active override",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No active override", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/companies/{companyId}/batches/{year}/snapshot/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the eligibility list",
                "parameters": [
                    {"name": "companyId", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/positions/{positionId}/rounds": {
            "get": {
                "tags": ["Rounds"],
                "summary": "List the funnel for a position",
                "parameters": [
                    {"name": "positionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rounds"],
                "summary": "Create the next round",
                "parameters": [
                    {"name": "positionId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRoundRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Round number out of order", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/positions/{positionId}/rounds/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the funnel report",
                "parameters": [
                    {"name": "positionId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/rounds/{id}/applications": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Record applications for round one",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MemberSetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rounds/{id}/attendance": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Record attendance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MemberSetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rounds/{id}/results": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Record or edit qualified results",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordResultsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Round locked by a later round", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rounds/{id}/results/preview": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Preview the result diff without persisting",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MemberSetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "registration_number": {"type": "string"},
                "name": {"type": "string"},
                "specialization": {"type": "string"},
                "cgpa": {"type": "number"},
                "backlog_count": {"type": "integer"},
                "batch_year": {"type": "integer"},
                "placement_status": {"type": "string"},
                "placed_position_id": {"type": "string"},
                "dream_company_used": {"type": "boolean"}
            }
        },
        "SnapshotEntry": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "status": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "RoundSummary": {
            "type": "object",
            "properties": {
                "round_number": {"type": "integer"},
                "status": {"type": "string"},
                "editable": {"type": "boolean"},
                "eligible_count": {"type": "integer"},
                "applied_count": {"type": "integer"},
                "attended_count": {"type": "integer"},
                "qualified_count": {"type": "integer"}
            }
        },
        "OverrideRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["student_id"]
        },
        "UpdatePlacementRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["unplaced", "placed"]},
                "position_id": {"type": "string"}
            },
            "required": ["status"]
        },
        "ExtractRegistrationsRequest": {
            "type": "object",
            "properties": {
                "raw": {"type": "string"}
            },
            "required": ["raw"]
        },
        "CreateRoundRequest": {
            "type": "object",
            "properties": {
                "round_number": {"type": "integer"}
            },
            "required": ["round_number"]
        },
        "MemberSetRequest": {
            "type": "object",
            "properties": {
                "student_ids": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            },
            "required": ["student_ids"]
        },
        "RecordResultsRequest": {
            "type": "object",
            "properties": {
                "student_ids": {
                    "type": "array",
                    "items": {"type": "string"}
                },
                "mode": {"type": "string", "enum": ["initial", "edit"]}
            },
            "required": ["student_ids", "mode"]
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
