package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

type mockRoundRepo struct {
	rounds  map[string]*models.RoundEvent
	members map[string]map[string]*models.RoundMember
	nextID  int
}

func newMockRoundRepo() *mockRoundRepo {
	return &mockRoundRepo{
		rounds:  make(map[string]*models.RoundEvent),
		members: make(map[string]map[string]*models.RoundMember),
	}
}

func (m *mockRoundRepo) MaxRoundNumber(ctx context.Context, positionID string) (int, error) {
	max := 0
	for _, r := range m.rounds {
		if r.PositionID == positionID && r.RoundNumber > max {
			max = r.RoundNumber
		}
	}
	return max, nil
}

func (m *mockRoundRepo) Create(ctx context.Context, round *models.RoundEvent, universe []string) error {
	for _, r := range m.rounds {
		if r.PositionID == round.PositionID && r.RoundNumber == round.RoundNumber {
			return appErrors.ErrOutOfOrder
		}
	}
	m.nextID++
	round.ID = fmt.Sprintf("round-%d", m.nextID)
	round.Status = models.RoundStatusUpcoming
	round.Version = 1
	cp := *round
	m.rounds[round.ID] = &cp
	m.members[round.ID] = make(map[string]*models.RoundMember, len(universe))
	for _, studentID := range universe {
		m.members[round.ID][studentID] = &models.RoundMember{RoundID: round.ID, StudentID: studentID}
	}
	return nil
}

func (m *mockRoundRepo) FindByID(ctx context.Context, id string) (*models.RoundEvent, error) {
	if r, ok := m.rounds[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoundRepo) ListByPosition(ctx context.Context, positionID string) ([]models.RoundEvent, error) {
	var out []models.RoundEvent
	for number := 1; ; number++ {
		found := false
		for _, r := range m.rounds {
			if r.PositionID == positionID && r.RoundNumber == number {
				out = append(out, *r)
				found = true
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (m *mockRoundRepo) ListMembers(ctx context.Context, roundID string) ([]models.RoundMember, error) {
	var out []models.RoundMember
	for _, member := range m.members[roundID] {
		out = append(out, *member)
	}
	return out, nil
}

func (m *mockRoundRepo) QualifiedIDs(ctx context.Context, roundID string) ([]string, error) {
	var out []string
	for _, member := range m.members[roundID] {
		if member.Qualified {
			out = append(out, member.StudentID)
		}
	}
	return out, nil
}

func (m *mockRoundRepo) Counts(ctx context.Context, roundID string) (*models.RoundCounts, error) {
	counts := &models.RoundCounts{}
	for _, member := range m.members[roundID] {
		counts.EligibleCount++
		if member.Attended {
			counts.AttendedCount++
		}
		if member.Qualified {
			counts.QualifiedCount++
		}
	}
	return counts, nil
}

func (m *mockRoundRepo) AppliedCount(ctx context.Context, roundID string) (int, error) {
	count := 0
	for _, member := range m.members[roundID] {
		if member.Applied {
			count++
		}
	}
	return count, nil
}

func (m *mockRoundRepo) SetApplications(ctx context.Context, roundID string, version int, studentIDs []string) error {
	return m.update(roundID, version, studentIDs, nil, func(member *models.RoundMember, in bool) {
		member.Applied = in
	})
}

func (m *mockRoundRepo) SetAttendance(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error {
	return m.update(roundID, version, studentIDs, &status, func(member *models.RoundMember, in bool) {
		member.Attended = in
	})
}

func (m *mockRoundRepo) SetResults(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error {
	return m.update(roundID, version, studentIDs, &status, func(member *models.RoundMember, in bool) {
		member.Qualified = in
	})
}

func (m *mockRoundRepo) update(roundID string, version int, studentIDs []string, status *models.RoundStatus, set func(*models.RoundMember, bool)) error {
	round, ok := m.rounds[roundID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "round not found")
	}
	if round.Version != version {
		return appErrors.ErrConcurrentModification
	}
	round.Version++
	if status != nil {
		round.Status = *status
	}
	in := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		in[id] = struct{}{}
	}
	for id, member := range m.members[roundID] {
		_, marked := in[id]
		set(member, marked)
	}
	return nil
}

type mockPositionReader struct {
	companies map[string]*models.Company
	positions map[string]*models.Position
}

func (m *mockPositionReader) FindByID(ctx context.Context, id string) (*models.Company, error) {
	if c, ok := m.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPositionReader) FindPositionByID(ctx context.Context, id string) (*models.Position, error) {
	if p, ok := m.positions[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type funnelFixture struct {
	svc    *FunnelService
	rounds *mockRoundRepo
	roster *mockPlacementRoster
}

func newFunnelFixture(t *testing.T, jobType models.JobType) *funnelFixture {
	t.Helper()

	snapshots := newMockSnapshotRepo()
	snapshot := &models.EligibilitySnapshot{CompanyID: "acme", BatchYear: 2026}
	entries := []models.SnapshotEntry{
		{StudentID: "s1", Status: models.EligibilityStatusEligible},
		{StudentID: "s2", Status: models.EligibilityStatusEligible},
		{StudentID: "s3", Status: models.EligibilityStatusEligible},
		{StudentID: "s4", Status: models.EligibilityStatusIneligible, Reason: models.ReasonCGPABelowMinimum},
	}
	require.NoError(t, snapshots.Create(context.Background(), snapshot, entries))

	positions := &mockPositionReader{
		companies: map[string]*models.Company{
			"acme": {ID: "acme", Name: "Acme", BatchYear: 2026},
		},
		positions: map[string]*models.Position{
			"pos-1": {ID: "pos-1", CompanyID: "acme", Title: "SDE", JobType: jobType},
		},
	}
	roster := &mockPlacementRoster{students: map[string]*models.Student{
		"s1": {ID: "s1", PlacementStatus: models.PlacementStatusUnplaced},
		"s2": {ID: "s2", PlacementStatus: models.PlacementStatusUnplaced},
		"s3": {ID: "s3", PlacementStatus: models.PlacementStatusUnplaced},
	}}

	rounds := newMockRoundRepo()
	reconcile := NewReconcileService(roster, nil, zap.NewNop())
	svc := NewFunnelService(rounds, positions, snapshots, reconcile, nil, nil, zap.NewNop())
	return &funnelFixture{svc: svc, rounds: rounds, roster: roster}
}

func (f *funnelFixture) createRound(t *testing.T, number int) *models.RoundSummary {
	t.Helper()
	summary, err := f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: number})
	require.NoError(t, err)
	return summary
}

func TestCreateRoundOneFreezesEligibleSet(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)

	summary := f.createRound(t, 1)

	assert.Equal(t, models.RoundStatusUpcoming, summary.Status)
	assert.Equal(t, 3, summary.EligibleCount, "ineligible entries are not part of the universe")
	require.NotNil(t, summary.AppliedCount)
	assert.Equal(t, 0, *summary.AppliedCount)
}

func TestCreateRoundRequiresSnapshot(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	f.svc.snapshots = newMockSnapshotRepo()

	_, err := f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateRoundStrictSequence(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)

	_, err := f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: 2})
	assert.ErrorIs(t, err, appErrors.ErrOutOfOrder)

	f.createRound(t, 1)

	_, err = f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: 3})
	assert.ErrorIs(t, err, appErrors.ErrOutOfOrder)

	_, err = f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: 1})
	assert.ErrorIs(t, err, appErrors.ErrOutOfOrder)
}

func TestCreateRoundNeedsCompletedPredecessor(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	f.createRound(t, 1)

	_, err := f.svc.CreateRound(context.Background(), "pos-1", CreateRoundRequest{RoundNumber: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutOfOrder.Code, appErrors.FromError(err).Code)
}

func TestRoundTwoInheritsQualifiedSet(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2", "s3"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)

	r2 := f.createRound(t, 2)
	assert.Equal(t, 2, r2.EligibleCount)
	assert.Nil(t, r2.AppliedCount, "applications only exist on round 1")

	members, err := f.rounds.ListMembers(context.Background(), r2.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.StudentID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestRecordApplicationsRoundOneOnly(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	summary, err := f.svc.RecordApplications(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	require.NotNil(t, summary.AppliedCount)
	assert.Equal(t, 2, *summary.AppliedCount)

	// Outside the frozen universe.
	_, err = f.svc.RecordApplications(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s4"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Progress to round 2 and try there.
	_, err = f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{StudentIDs: []string{"s1"}, Mode: models.ResultModeInitial})
	require.NoError(t, err)
	r2 := f.createRound(t, 2)

	_, err = f.svc.RecordApplications(context.Background(), r2.ID, MemberSetRequest{StudentIDs: []string{"s1"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordAttendanceMarksOngoing(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	summary, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s3"}})
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusOngoing, summary.Status)
	assert.Equal(t, 2, summary.AttendedCount)

	_, err = f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"ghost"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordResultsQualifiedMustHaveAttended(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1"}})
	require.NoError(t, err)

	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordResultsInitialFinalizesAndPlaces(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2", "s3"}})
	require.NoError(t, err)

	summary, diff, err := f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoundStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.QualifiedCount)
	assert.True(t, summary.Editable)
	assert.Equal(t, []string{"s1", "s2"}, diff.Added)

	assert.Equal(t, models.PlacementStatusPlaced, f.roster.students["s1"].PlacementStatus)
	require.NotNil(t, f.roster.students["s1"].PlacedPositionID)
	assert.Equal(t, "pos-1", *f.roster.students["s1"].PlacedPositionID)
	assert.Equal(t, models.PlacementStatusUnplaced, f.roster.students["s3"].PlacementStatus)

	// A second initial submission is refused.
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1"},
		Mode:       models.ResultModeInitial,
	})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyFinalized)
}

func TestRecordResultsInternshipNeverPlaces(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypeInternship)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PlacementStatusUnplaced, f.roster.students["s1"].PlacementStatus)
}

func TestRecordResultsEditCorrectsLatestRound(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2", "s3"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)

	// Swap s2 out for s3.
	summary, diff, err := f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s3"},
		Mode:       models.ResultModeEdit,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"s3"}, diff.Added)
	assert.Equal(t, []string{"s2"}, diff.Removed)
	assert.Equal(t, []string{"s1"}, diff.Unchanged)
	assert.Equal(t, 2, summary.QualifiedCount)

	assert.Equal(t, models.PlacementStatusPlaced, f.roster.students["s3"].PlacementStatus)
	assert.Equal(t, models.PlacementStatusUnplaced, f.roster.students["s2"].PlacementStatus, "removed student placed here is reverted")
}

func TestRecordResultsEditLockedByLaterRound(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)

	f.createRound(t, 2)

	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1"},
		Mode:       models.ResultModeEdit,
	})
	assert.ErrorIs(t, err, appErrors.ErrEditLocked)
}

func TestRecordResultsEditRequiresCompletion(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1"}})
	require.NoError(t, err)

	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1"},
		Mode:       models.ResultModeEdit,
	})
	assert.ErrorIs(t, err, appErrors.ErrEditLocked)
}

func TestPreviewResultsIsReadOnly(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)

	diff, err := f.svc.PreviewResults(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, diff.Added)

	round, err := f.rounds.FindByID(context.Background(), r1.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.RoundStatusCompleted, round.Status)
	assert.Equal(t, models.PlacementStatusUnplaced, f.roster.students["s1"].PlacementStatus)
}

func TestListRoundsEditableFlag(t *testing.T) {
	f := newFunnelFixture(t, models.JobTypePlacement)
	r1 := f.createRound(t, 1)

	_, err := f.svc.RecordAttendance(context.Background(), r1.ID, MemberSetRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	_, _, err = f.svc.RecordResults(context.Background(), r1.ID, RecordResultsRequest{
		StudentIDs: []string{"s1", "s2"},
		Mode:       models.ResultModeInitial,
	})
	require.NoError(t, err)
	f.createRound(t, 2)

	summaries, err := f.svc.ListRounds(context.Background(), "pos-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.False(t, summaries[0].Editable, "completed but locked by round 2")
	assert.False(t, summaries[1].Editable, "latest round not completed yet")
}
