package progression

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdash/rncpsim/internal/persistence"
)

func TestSetProjectMark_ClampAndDefault(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("alpha", 200, false)
	mark, ok := s.Mark("alpha")
	require.True(t, ok)
	assert.Equal(t, 125, mark)

	s.SetProjectMark("alpha", -10, false)
	mark, _ = s.Mark("alpha")
	assert.Equal(t, 0, mark)
}

func TestSetProjectMark_CascadeSkipsOptional(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("parent", 100, true)

	for _, id := range []string{"parent", "child-1", "child-2"} {
		mark, ok := s.Mark(id)
		require.True(t, ok, id)
		assert.Equal(t, 100, mark, id)
	}
	_, ok := s.Mark("opt-child")
	assert.False(t, ok, "optional child must not be cascade-marked")
}

func TestSetProjectMark_CascadeTransitive(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("deep", 110, true)

	for _, id := range []string{"deep", "mid", "leaf"} {
		mark, ok := s.Mark(id)
		require.True(t, ok, id)
		assert.Equal(t, 110, mark, id)
	}
}

func TestSetProjectMark_UnknownProjectHasNoEffectOnTotals(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("ghost", 100, true)
	assert.Equal(t, 0.0, s.SelectedXP())
}

func TestRemoveProject_Idempotent(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("parent", 100, true)
	s.RemoveProject("parent")
	first := s.Snapshot()

	s.RemoveProject("parent")
	second := s.Snapshot()

	assert.Equal(t, first.ProjectMarks, second.ProjectMarks)
	assert.Empty(t, second.ProjectMarks)
}

func TestRemoveProject_RemovesOptionalDescendants(t *testing.T) {
	s := testStore(t)

	s.SetProjectMark("parent", 100, true)
	s.SetProjectMark("opt-child", 100, false)
	s.RemoveProject("parent")

	_, ok := s.Mark("opt-child")
	assert.False(t, ok)
}

func TestToggleExperience(t *testing.T) {
	s := testStore(t)

	s.ToggleExperience("intern")
	assert.Equal(t, map[string]int{"intern": 100}, s.SelectedExperiences())

	s.ToggleExperience("intern")
	assert.Empty(t, s.SelectedExperiences())
}

func TestSetExperienceMark_OnlyForSelected(t *testing.T) {
	s := testStore(t)

	s.SetExperienceMark("intern", 50)
	assert.Empty(t, s.SelectedExperiences())

	s.SetExperience("intern", true)
	s.SetExperienceMark("intern", 50)
	assert.Equal(t, 50, s.SelectedExperiences()["intern"])
}

func TestSetEvents_StampsFreshness(t *testing.T) {
	s := testStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(s, now)

	assert.True(t, s.EventsStale())
	s.SetEvents(7)
	assert.Equal(t, 7, s.Events())
	assert.False(t, s.EventsStale())

	fixedClock(s, now.Add(EventsTTL))
	assert.True(t, s.EventsStale())
}

func TestResetAll(t *testing.T) {
	s := testStore(t)
	s.SetProjectMark("alpha", 100, false)
	s.ToggleExperience("intern")
	s.ToggleCoalition("alpha")
	s.SetEvents(5)
	s.ProcessInitialData(ProfileData{Level: 2, Validations: []ProfileValidation{
		{ProjectID: "child-1", FinalMark: 100, InCurriculum: true},
	}})

	s.ResetAll()

	assert.Equal(t, 0.0, s.SelectedXP())
	assert.Equal(t, 0, s.Events())
	assert.False(t, s.DataProcessed())
	assert.Empty(t, s.Snapshot().ProjectMarks)
	assert.Empty(t, s.Snapshot().CoalitionProjects)
}

func TestSoftReset_KeepsAutoBaselineAndEvents(t *testing.T) {
	s := testStore(t)

	s.ProcessInitialData(ProfileData{Level: 1, Validations: []ProfileValidation{
		{ProjectID: "alpha", FinalMark: 100, InCurriculum: true},
	}})
	s.SetProjectMark("child-1", 100, false) // manual addition
	s.ToggleCoalition("child-1")
	s.SetEvents(4)

	s.SoftReset()

	mark, ok := s.Mark("alpha")
	require.True(t, ok, "auto-fetched mark survives soft reset")
	assert.Equal(t, 100, mark)

	_, ok = s.Mark("child-1")
	assert.False(t, ok, "manual mark dropped by soft reset")

	assert.Empty(t, s.Snapshot().CoalitionProjects)
	assert.Equal(t, 4, s.Events())
	assert.False(t, s.DataProcessed(), "soft reset re-arms reconciliation")
}

func TestPersistAfterMutation(t *testing.T) {
	dir := t.TempDir()
	fs, err := persistence.NewFileStore(dir)
	require.NoError(t, err)

	s := NewStore(testCatalog(t), fs, "jdoe", zerolog.Nop())
	s.SetProjectMark("alpha", 100, false)

	b, err := fs.Load(context.Background(), "jdoe")
	require.NoError(t, err)
	snap, err := DecodeSnapshot(b)
	require.NoError(t, err)
	require.Len(t, snap.ProjectMarks, 1)
	assert.Equal(t, "alpha", snap.ProjectMarks[0].ID)
	assert.Equal(t, 100, snap.ProjectMarks[0].Mark)
}
