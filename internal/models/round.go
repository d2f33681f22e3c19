package models

import "time"

// RoundStatus is the closed transition set upcoming → ongoing → completed.
type RoundStatus string

const (
	RoundStatusUpcoming  RoundStatus = "upcoming"
	RoundStatusOngoing   RoundStatus = "ongoing"
	RoundStatusCompleted RoundStatus = "completed"
)

// ResultMode selects first-time finalization versus correction of the
// latest completed round.
type ResultMode string

const (
	ResultModeInitial ResultMode = "initial"
	ResultModeEdit    ResultMode = "edit"
)

// RoundEvent is one stage of a position's recruitment funnel. The input
// universe is frozen into round_members at creation; round 1 draws from
// the snapshot's eligible set, round N from round N-1's qualified set.
// Version backs the optimistic lock on attendance and result writes.
type RoundEvent struct {
	ID          string      `db:"id" json:"id"`
	PositionID  string      `db:"position_id" json:"position_id"`
	RoundNumber int         `db:"round_number" json:"round_number"`
	Status      RoundStatus `db:"status" json:"status"`
	Version     int         `db:"version" json:"version"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// RoundMember is one universe member's progress through a round.
type RoundMember struct {
	RoundID   string `db:"round_id" json:"-"`
	StudentID string `db:"student_id" json:"student_id"`
	Applied   bool   `db:"applied" json:"applied"`
	Attended  bool   `db:"attended" json:"attended"`
	Qualified bool   `db:"qualified" json:"qualified"`
}

// RoundCounts carries the derived funnel numbers for one round. Applied is
// only meaningful for round 1; later rounds inherit the prior round's
// qualified set as their universe.
type RoundCounts struct {
	EligibleCount  int  `db:"eligible_count" json:"eligible_count"`
	AppliedCount   *int `json:"applied_count,omitempty"`
	AttendedCount  int  `db:"attended_count" json:"attended_count"`
	QualifiedCount int  `db:"qualified_count" json:"qualified_count"`
}

// RoundSummary pairs a round with its derived counts and edit flag.
type RoundSummary struct {
	RoundEvent
	RoundCounts
	Editable bool `json:"editable"`
}

// ResultDiff is the reconciler's pure set difference between a previously
// recorded qualified set and a newly submitted one. ReviewRequired lists
// removed students whose placement could not be safely reverted because it
// was not recorded through this position.
type ResultDiff struct {
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	Unchanged      []string `json:"unchanged"`
	ReviewRequired []string `json:"review_required,omitempty"`
}

// Empty reports whether the diff changes nothing.
func (d ResultDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
