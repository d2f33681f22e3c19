package models

import "time"

// PlacementStatus enumerates a student's placement state.
type PlacementStatus string

const (
	PlacementStatusUnplaced PlacementStatus = "unplaced"
	PlacementStatusPlaced   PlacementStatus = "placed"
)

// Student is the engine's read-only view of a roster member. Academic
// fields are owned by the roster collaborator; the engine mutates only
// placement_status, placed_position_id and dream_company_used.
type Student struct {
	ID                 string          `db:"id" json:"id"`
	RegistrationNumber string          `db:"registration_number" json:"registration_number"`
	FullName           string          `db:"full_name" json:"full_name"`
	CGPA               float64         `db:"cgpa" json:"cgpa"`
	BacklogCount       int             `db:"backlog_count" json:"backlog_count"`
	Specialization     string          `db:"specialization" json:"specialization"`
	Percentile10       float64         `db:"percentile_10" json:"percentile_10"`
	Percentile12       float64         `db:"percentile_12" json:"percentile_12"`
	PlacementStatus    PlacementStatus `db:"placement_status" json:"placement_status"`
	DreamCompanyUsed   bool            `db:"dream_company_used" json:"dream_company_used"`
	BatchYear          int             `db:"batch_year" json:"batch_year"`
	PlacedPositionID   *string         `db:"placed_position_id" json:"placed_position_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search         string
	BatchYear      int
	Specialization string
	Status         PlacementStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// RegistrationExtract reports the outcome of resolving raw registration
// numbers against the roster.
type RegistrationExtract struct {
	StudentIDs []string `json:"student_ids"`
	Unknown    []string `json:"unknown"`
}
