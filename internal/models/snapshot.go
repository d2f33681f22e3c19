package models

import "time"

// EligibilityStatus partitions a snapshot entry.
type EligibilityStatus string

const (
	EligibilityStatusEligible   EligibilityStatus = "eligible"
	EligibilityStatusIneligible EligibilityStatus = "ineligible"
)

// Ineligibility reasons reported by the rule evaluator, in rule order.
const (
	ReasonCGPABelowMinimum         = "cgpa_below_minimum"
	ReasonTooManyBacklogs          = "too_many_backlogs"
	ReasonSpecializationNotAllowed = "specialization_not_allowed"
	ReasonAlreadyPlaced            = "already_placed"
)

// OverrideKind names the two sanctioned override paths.
type OverrideKind string

const (
	OverrideKindDreamCompany OverrideKind = "dream_company"
	OverrideKindManual       OverrideKind = "manual"
)

// EligibilitySnapshot is the persisted partition of a batch roster against
// one company's criteria, computed once and mutated only through overrides.
// Criteria are copied at calculation time so later company edits never
// reshape history. Version backs the optimistic lock on override writes.
type EligibilitySnapshot struct {
	ID        string              `db:"id" json:"id"`
	CompanyID string              `db:"company_id" json:"company_id"`
	BatchYear int                 `db:"batch_year" json:"batch_year"`
	Criteria  EligibilityCriteria `db:"-" json:"criteria"`
	Version   int                 `db:"version" json:"version"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// SnapshotEntry records one roster member's side of the partition.
type SnapshotEntry struct {
	SnapshotID string            `db:"snapshot_id" json:"-"`
	StudentID  string            `db:"student_id" json:"student_id"`
	Status     EligibilityStatus `db:"status" json:"status"`
	Reason     string            `db:"reason" json:"reason,omitempty"`
}

// Override is one append-only audit record. Removal deactivates the latest
// record for a student; rows are never deleted. PriorStatus and PriorReason
// capture the entry's verdict at apply time so a revert can restore it.
type Override struct {
	ID          string            `db:"id" json:"id"`
	SnapshotID  string            `db:"snapshot_id" json:"-"`
	StudentID   string            `db:"student_id" json:"student_id"`
	Kind        OverrideKind      `db:"kind" json:"kind"`
	Reason      string            `db:"reason" json:"reason,omitempty"`
	PriorStatus EligibilityStatus `db:"prior_status" json:"prior_status"`
	PriorReason string            `db:"prior_reason" json:"prior_reason,omitempty"`
	Active      bool              `db:"active" json:"active"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// SnapshotDetail is the read model served to the dashboard.
type SnapshotDetail struct {
	EligibilitySnapshot
	Entries         []SnapshotEntry `json:"entries"`
	Overrides       []Override      `json:"overrides"`
	EligibleCount   int             `json:"eligible_count"`
	IneligibleCount int             `json:"ineligible_count"`
}

// EligibleIDs returns the ids of currently eligible entries.
func (d *SnapshotDetail) EligibleIDs() []string {
	ids := make([]string, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.Status == EligibilityStatusEligible {
			ids = append(ids, e.StudentID)
		}
	}
	return ids
}
