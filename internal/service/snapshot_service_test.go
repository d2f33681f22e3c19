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

type mockSnapshotRepo struct {
	snapshots map[string]*models.EligibilitySnapshot
	entries   map[string]map[string]*models.SnapshotEntry
	overrides []*models.Override
	nextID    int
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{
		snapshots: make(map[string]*models.EligibilitySnapshot),
		entries:   make(map[string]map[string]*models.SnapshotEntry),
	}
}

func (m *mockSnapshotRepo) id() string {
	m.nextID++
	return fmt.Sprintf("snap-%d", m.nextID)
}

func (m *mockSnapshotRepo) Create(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error {
	for _, existing := range m.snapshots {
		if existing.CompanyID == snapshot.CompanyID && existing.BatchYear == snapshot.BatchYear {
			return appErrors.ErrAlreadyExists
		}
	}
	return m.store(snapshot, entries)
}

func (m *mockSnapshotRepo) Replace(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error {
	for id, existing := range m.snapshots {
		if existing.CompanyID == snapshot.CompanyID && existing.BatchYear == snapshot.BatchYear {
			delete(m.snapshots, id)
			delete(m.entries, id)
			kept := m.overrides[:0]
			for _, o := range m.overrides {
				if o.SnapshotID != id {
					kept = append(kept, o)
				}
			}
			m.overrides = kept
		}
	}
	return m.store(snapshot, entries)
}

func (m *mockSnapshotRepo) store(snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error {
	if snapshot.ID == "" {
		snapshot.ID = m.id()
	}
	snapshot.Version = 1
	cp := *snapshot
	m.snapshots[snapshot.ID] = &cp
	m.entries[snapshot.ID] = make(map[string]*models.SnapshotEntry, len(entries))
	for i := range entries {
		e := entries[i]
		e.SnapshotID = snapshot.ID
		m.entries[snapshot.ID][e.StudentID] = &e
	}
	return nil
}

func (m *mockSnapshotRepo) FindByID(ctx context.Context, id string) (*models.EligibilitySnapshot, error) {
	if s, ok := m.snapshots[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSnapshotRepo) FindByCompanyBatch(ctx context.Context, companyID string, batchYear int) (*models.EligibilitySnapshot, error) {
	for _, s := range m.snapshots {
		if s.CompanyID == companyID && s.BatchYear == batchYear {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSnapshotRepo) ListEntries(ctx context.Context, snapshotID string) ([]models.SnapshotEntry, error) {
	var out []models.SnapshotEntry
	for _, e := range m.entries[snapshotID] {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockSnapshotRepo) FindEntry(ctx context.Context, snapshotID, studentID string) (*models.SnapshotEntry, error) {
	if e, ok := m.entries[snapshotID][studentID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSnapshotRepo) ListOverrides(ctx context.Context, snapshotID string) ([]models.Override, error) {
	var out []models.Override
	for _, o := range m.overrides {
		if o.SnapshotID == snapshotID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockSnapshotRepo) FindActiveOverride(ctx context.Context, snapshotID, studentID string) (*models.Override, error) {
	for i := len(m.overrides) - 1; i >= 0; i-- {
		o := m.overrides[i]
		if o.SnapshotID == snapshotID && o.StudentID == studentID && o.Active {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSnapshotRepo) ApplyOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error {
	snapshot, ok := m.snapshots[snapshotID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
	}
	if snapshot.Version != version {
		return appErrors.ErrConcurrentModification
	}
	snapshot.Version++
	for _, o := range m.overrides {
		if o.SnapshotID == snapshotID && o.StudentID == override.StudentID {
			o.Active = false
		}
	}
	override.ID = m.id()
	override.SnapshotID = snapshotID
	override.Active = true
	cp := *override
	m.overrides = append(m.overrides, &cp)
	if e, ok := m.entries[snapshotID][override.StudentID]; ok {
		e.Status = models.EligibilityStatusEligible
		e.Reason = ""
	}
	return nil
}

func (m *mockSnapshotRepo) RevertOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error {
	snapshot, ok := m.snapshots[snapshotID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
	}
	if snapshot.Version != version {
		return appErrors.ErrConcurrentModification
	}
	snapshot.Version++
	for _, o := range m.overrides {
		if o.ID == override.ID {
			o.Active = false
		}
	}
	if e, ok := m.entries[snapshotID][override.StudentID]; ok {
		e.Status = override.PriorStatus
		e.Reason = override.PriorReason
	}
	return nil
}

type mockRoster struct {
	students map[string]*models.Student
}

func (m *mockRoster) ListByBatch(ctx context.Context, batchYear int) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.BatchYear == batchYear {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockRoster) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoster) SetDreamCompanyUsed(ctx context.Context, studentID string, used bool) error {
	if s, ok := m.students[studentID]; ok {
		s.DreamCompanyUsed = used
	}
	return nil
}

type mockCompanyReader struct {
	companies map[string]*models.Company
}

func (m *mockCompanyReader) FindByID(ctx context.Context, id string) (*models.Company, error) {
	if c, ok := m.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func snapshotFixture() (*SnapshotService, *mockSnapshotRepo, *mockRoster) {
	repo := newMockSnapshotRepo()
	roster := &mockRoster{students: map[string]*models.Student{
		"good": {ID: "good", BatchYear: 2026, CGPA: 8.5, Specialization: "CSE", PlacementStatus: models.PlacementStatusUnplaced},
		"low":  {ID: "low", BatchYear: 2026, CGPA: 5.0, Specialization: "CSE", PlacementStatus: models.PlacementStatusUnplaced},
		"placed": {
			ID: "placed", BatchYear: 2026, CGPA: 9.0, Specialization: "CSE",
			PlacementStatus: models.PlacementStatusPlaced,
		},
	}}
	company := &mockCompanyReader{companies: map[string]*models.Company{
		"acme": {ID: "acme", Name: "Acme", BatchYear: 2026, MinCGPA: floatPtr(7.0), MaxBacklogs: models.UnlimitedBacklogs},
	}}
	svc := NewSnapshotService(repo, roster, company, nil, zap.NewNop())
	return svc, repo, roster
}

func TestSnapshotCalculatePartitionsRoster(t *testing.T) {
	svc, _, _ := snapshotFixture()

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	assert.Equal(t, 1, detail.EligibleCount)
	assert.Equal(t, 2, detail.IneligibleCount)
	assert.Len(t, detail.Entries, 3)
	assert.Equal(t, []string{"good"}, detail.EligibleIDs())

	for _, entry := range detail.Entries {
		switch entry.StudentID {
		case "good":
			assert.Empty(t, entry.Reason)
		case "low":
			assert.Equal(t, models.ReasonCGPABelowMinimum, entry.Reason)
		default:
			assert.Equal(t, models.ReasonAlreadyPlaced, entry.Reason)
		}
	}
}

func TestSnapshotCalculateIsOneTime(t *testing.T) {
	svc, _, _ := snapshotFixture()

	_, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	_, err = svc.Calculate(context.Background(), "acme", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
}

func TestSnapshotReplaceDiscardsOverrides(t *testing.T) {
	svc, repo, roster := snapshotFixture()
	roster.students["low"].PlacementStatus = models.PlacementStatusPlaced

	first, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)
	_, err = svc.ApplyManualOverride(context.Background(), first.ID, "low", "special approval")
	require.NoError(t, err)

	replaced, err := svc.Replace(context.Background(), "acme", 2026)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, replaced.ID)
	assert.Empty(t, replaced.Overrides)
	assert.Empty(t, repo.overrides)
}

func TestSnapshotCalculateUnknownCompany(t *testing.T) {
	svc, _, _ := snapshotFixture()

	_, err := svc.Calculate(context.Background(), "ghost", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSnapshotGetMissing(t *testing.T) {
	svc, _, _ := snapshotFixture()

	_, err := svc.Get(context.Background(), "acme", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDreamCompanyOverride(t *testing.T) {
	svc, repo, roster := snapshotFixture()
	// A placed student with a CGPA below the floor: ineligible on two
	// counts, which is exactly who the privilege exists for.
	roster.students["low"].PlacementStatus = models.PlacementStatusPlaced

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	detail, err = svc.ApplyDreamCompanyOverride(context.Background(), detail.ID, "low")
	require.NoError(t, err)

	assert.Contains(t, detail.EligibleIDs(), "low")
	assert.True(t, roster.students["low"].DreamCompanyUsed)
	require.Len(t, detail.Overrides, 1)
	assert.Equal(t, models.OverrideKindDreamCompany, detail.Overrides[0].Kind)
	assert.True(t, detail.Overrides[0].Active)
	assert.Equal(t, models.EligibilityStatusIneligible, detail.Overrides[0].PriorStatus)
	assert.Equal(t, models.ReasonCGPABelowMinimum, detail.Overrides[0].PriorReason)
	assert.Equal(t, 2, repo.snapshots[detail.ID].Version)
}

func TestDreamCompanyOverridePreconditions(t *testing.T) {
	svc, _, roster := snapshotFixture()
	roster.students["low"].PlacementStatus = models.PlacementStatusPlaced

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	// Already eligible.
	_, err = svc.ApplyDreamCompanyOverride(context.Background(), detail.ID, "good")
	assert.ErrorIs(t, err, appErrors.ErrNotIneligible)

	// Ineligible but not placed.
	roster.students["low"].PlacementStatus = models.PlacementStatusUnplaced
	_, err = svc.ApplyDreamCompanyOverride(context.Background(), detail.ID, "low")
	assert.ErrorIs(t, err, appErrors.ErrNotPlaced)

	// Privilege already consumed.
	roster.students["low"].PlacementStatus = models.PlacementStatusPlaced
	roster.students["low"].DreamCompanyUsed = true
	_, err = svc.ApplyDreamCompanyOverride(context.Background(), detail.ID, "low")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyUsed)
}

func TestManualOverrideRequiresReason(t *testing.T) {
	svc, _, _ := snapshotFixture()

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	_, err = svc.ApplyManualOverride(context.Background(), detail.ID, "low", "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestManualOverrideAuditsEligibleStudent(t *testing.T) {
	svc, _, _ := snapshotFixture()

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	// No eligibility precondition: an already-eligible student still
	// gets an audit record, and the entry stays eligible.
	detail, err = svc.ApplyManualOverride(context.Background(), detail.ID, "good", "note for the record")
	require.NoError(t, err)

	assert.Contains(t, detail.EligibleIDs(), "good")
	require.Len(t, detail.Overrides, 1)
	assert.Equal(t, models.OverrideKindManual, detail.Overrides[0].Kind)
	assert.Equal(t, models.EligibilityStatusEligible, detail.Overrides[0].PriorStatus)
}

func TestRemoveOverrideRestoresVerdict(t *testing.T) {
	svc, _, roster := snapshotFixture()
	roster.students["low"].PlacementStatus = models.PlacementStatusPlaced

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)
	detail, err = svc.ApplyDreamCompanyOverride(context.Background(), detail.ID, "low")
	require.NoError(t, err)

	detail, err = svc.RemoveOverride(context.Background(), detail.ID, "low")
	require.NoError(t, err)

	assert.NotContains(t, detail.EligibleIDs(), "low")
	assert.False(t, roster.students["low"].DreamCompanyUsed, "privilege restored on revert")

	// The log keeps the deactivated record.
	require.Len(t, detail.Overrides, 1)
	assert.False(t, detail.Overrides[0].Active)

	var entry models.SnapshotEntry
	for _, e := range detail.Entries {
		if e.StudentID == "low" {
			entry = e
		}
	}
	assert.Equal(t, models.EligibilityStatusIneligible, entry.Status)
	assert.Equal(t, models.ReasonCGPABelowMinimum, entry.Reason)
}

func TestRemoveOverrideWithoutActiveOne(t *testing.T) {
	svc, _, _ := snapshotFixture()

	detail, err := svc.Calculate(context.Background(), "acme", 2026)
	require.NoError(t, err)

	_, err = svc.RemoveOverride(context.Background(), detail.ID, "good")
	assert.ErrorIs(t, err, appErrors.ErrNoActiveOverride)
}
