package progression

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/campusdash/rncpsim/internal/catalog"
)

// testCatalog builds a small fixture forest:
//
//	alpha            (leaf, 1000 XP)
//	parent           (0 XP) -> child-1 (500), child-2 (500), opt-child (250, optional)
//	deep             (100) -> mid (200) -> leaf (400)
//	stage            (leaf, 0 XP, implies the "intern" experience)
//	appr             (leaf, 0 XP, implies the double-counting "appr2" experience)
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	curve := catalog.Curve{
		{Level: 0, XP: 0},
		{Level: 1, XP: 1000},
		{Level: 2, XP: 3000},
		{Level: 3, XP: 6000},
		{Level: 4, XP: 10000},
		{Level: 5, XP: 15000},
	}
	projects := []catalog.Project{
		{ID: "alpha", Name: "Alpha", BaseXP: 1000},
		{ID: "parent", Name: "Parent Module", Children: []string{"child-1", "child-2", "opt-child"}},
		{ID: "child-1", Name: "Child One", BaseXP: 500},
		{ID: "child-2", Name: "Child Two", BaseXP: 500},
		{ID: "opt-child", Name: "(Optional) Extra", BaseXP: 250},
		{ID: "deep", Name: "Deep", BaseXP: 100, Children: []string{"mid"}},
		{ID: "mid", Name: "Mid", BaseXP: 200, Children: []string{"leaf"}},
		{ID: "leaf", Name: "Leaf", BaseXP: 400},
		{ID: "stage", Name: "Internship", BaseXP: 0},
		{ID: "appr", Name: "Apprenticeship", BaseXP: 0},
	}
	titles := []catalog.Title{
		{
			ID:                  "title-1",
			Name:                "Test Title",
			Level:               2,
			NumberOfEvents:      2,
			NumberOfExperiences: 1,
			Options: []catalog.Option{
				{
					ID:               "opt-a",
					Name:             "Option A",
					Projects:         []string{"alpha", "parent"},
					NumberOfProjects: 2,
					Experience:       1500,
				},
			},
		},
	}
	experiences := []catalog.ExperienceKind{
		{ID: "intern", Name: "Internship", XP: 2000, ImpliedBy: []string{"stage"}},
		{ID: "appr2", Name: "Apprenticeship 2y", XP: 4000, ImpliedBy: []string{"appr"}, CountsDouble: true},
	}

	cat, err := catalog.New(curve, projects, titles, experiences)
	require.NoError(t, err)
	return cat
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testCatalog(t), nil, "jdoe", zerolog.Nop())
}

// fixedClock pins the store clock for TTL tests.
func fixedClock(s *Store, at time.Time) {
	s.now = func() time.Time { return at }
}
