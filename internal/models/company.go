package models

import (
	"time"

	"github.com/lib/pq"
)

// UnlimitedBacklogs is the sentinel meaning no backlog ceiling applies.
const UnlimitedBacklogs = -1

// JobType distinguishes positions that confer placement from internships.
type JobType string

const (
	JobTypePlacement  JobType = "placement"
	JobTypeInternship JobType = "internship"
)

// EligibilityCriteria holds a company's automatic filtering rules.
// MinCGPA nil means no floor; MaxBacklogs of UnlimitedBacklogs means no
// ceiling; an empty AllowedSpecializations set admits every branch.
// BondRequired is informational only and never filters.
type EligibilityCriteria struct {
	MinCGPA                *float64 `json:"min_cgpa,omitempty"`
	MaxBacklogs            int      `json:"max_backlogs"`
	AllowedSpecializations []string `json:"allowed_specializations"`
	BondRequired           bool     `json:"bond_required"`
}

// Company is the read-only criteria source for snapshot calculation.
type Company struct {
	ID                     string         `db:"id" json:"id"`
	Name                   string         `db:"name" json:"name"`
	BatchYear              int            `db:"batch_year" json:"batch_year"`
	MinCGPA                *float64       `db:"min_cgpa" json:"min_cgpa,omitempty"`
	MaxBacklogs            int            `db:"max_backlogs" json:"max_backlogs"`
	AllowedSpecializations pq.StringArray `db:"allowed_specializations" json:"allowed_specializations"`
	BondRequired           bool           `db:"bond_required" json:"bond_required"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
}

// Criteria converts the stored columns into the evaluator's input.
func (c *Company) Criteria() EligibilityCriteria {
	return EligibilityCriteria{
		MinCGPA:                c.MinCGPA,
		MaxBacklogs:            c.MaxBacklogs,
		AllowedSpecializations: append([]string(nil), c.AllowedSpecializations...),
		BondRequired:           c.BondRequired,
	}
}

// Position is a read-only opening offered by a company.
type Position struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"company_id"`
	Title     string    `db:"title" json:"title"`
	JobType   JobType   `db:"job_type" json:"job_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
