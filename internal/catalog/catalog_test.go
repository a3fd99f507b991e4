package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurve() Curve {
	return Curve{
		{Level: 0, XP: 0},
		{Level: 1, XP: 1000},
		{Level: 2, XP: 3000},
		{Level: 3, XP: 6000},
	}
}

func TestCurve_XPForLevel(t *testing.T) {
	c := testCurve()

	assert.InDelta(t, 0.0, c.XPForLevel(0), 1e-9)
	assert.InDelta(t, 1000.0, c.XPForLevel(1), 1e-9)
	assert.InDelta(t, 2000.0, c.XPForLevel(1.5), 1e-9)
	assert.InDelta(t, 4500.0, c.XPForLevel(2.5), 1e-9)

	// Out-of-range levels clamp to the curve's ends.
	assert.InDelta(t, 0.0, c.XPForLevel(-3), 1e-9)
	assert.InDelta(t, 6000.0, c.XPForLevel(12), 1e-9)
}

func TestCurve_LevelFloor(t *testing.T) {
	c := testCurve()

	assert.Equal(t, 0, c.LevelFloor(0))
	assert.Equal(t, 0, c.LevelFloor(999))
	assert.Equal(t, 1, c.LevelFloor(1000))
	assert.Equal(t, 1, c.LevelFloor(2999))
	assert.Equal(t, 3, c.LevelFloor(6000))
	assert.Equal(t, 3, c.LevelFloor(1e9))
}

func TestCurve_LevelDisplay(t *testing.T) {
	c := testCurve()

	assert.InDelta(t, 0.5, c.LevelDisplay(500), 1e-9)
	assert.InDelta(t, 1.5, c.LevelDisplay(2000), 1e-9)
	assert.InDelta(t, 3.0, c.LevelDisplay(6000), 1e-9)
	assert.InDelta(t, 3.0, c.LevelDisplay(7000), 1e-9)
}

func TestProject_Optional(t *testing.T) {
	assert.True(t, (&Project{Name: "(Optional) Bonus"}).Optional())
	assert.False(t, (&Project{Name: "Bonus (Optional)"}).Optional())
}

func TestNew_ParentBackReferences(t *testing.T) {
	cat, err := New(testCurve(), []Project{
		{ID: "root", Name: "Root", Children: []string{"kid"}},
		{ID: "kid", Name: "Kid", BaseXP: 10},
		{ID: "lone", Name: "Lone"},
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "root", cat.Project("kid").Parent)
	assert.Equal(t, "", cat.Project("root").Parent)
	assert.ElementsMatch(t, []string{"root", "lone"}, cat.Roots())
	assert.Equal(t, []string{"kid"}, cat.Descendants("root"))
}

func TestNew_RejectsCycle(t *testing.T) {
	_, err := New(testCurve(), []Project{
		{ID: "a", Name: "A", Children: []string{"b"}},
		{ID: "b", Name: "B", Children: []string{"a"}},
	}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNew_RejectsUnknownChild(t *testing.T) {
	_, err := New(testCurve(), []Project{
		{ID: "a", Name: "A", Children: []string{"missing"}},
	}, nil, nil)
	assert.Error(t, err)
}

func TestNew_RejectsUnknownOptionProject(t *testing.T) {
	_, err := New(testCurve(), []Project{
		{ID: "a", Name: "A"},
	}, []Title{
		{ID: "t", Name: "T", Options: []Option{{ID: "o", Projects: []string{"missing"}}}},
	}, nil)
	assert.Error(t, err)
}

func TestNew_RejectsNonAscendingCurve(t *testing.T) {
	_, err := New(Curve{{Level: 0, XP: 0}, {Level: 1, XP: 500}, {Level: 2, XP: 400}}, nil, nil, nil)
	assert.Error(t, err)
}

func TestNew_ImpliedExperience(t *testing.T) {
	cat, err := New(testCurve(), []Project{
		{ID: "stage", Name: "Internship"},
	}, nil, []ExperienceKind{
		{ID: "intern", Name: "Internship", XP: 42000, ImpliedBy: []string{"stage"}},
	})
	require.NoError(t, err)

	kind, ok := cat.ImpliedExperience("stage")
	require.True(t, ok)
	assert.Equal(t, "intern", kind)

	_, ok = cat.ImpliedExperience("other")
	assert.False(t, ok)
}

func TestLoad_FromDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("curve.yaml", `
curve:
  - { level: 0, xp: 0 }
  - { level: 1, xp: 1000 }
`)
	write("projects.yaml", `
projects:
  - id: root
    name: Root
    children: [kid]
  - id: kid
    name: Kid
    xp: 500
`)
	write("titles.yaml", `
titles:
  - id: t1
    name: Title
    level: 1
    number_of_events: 2
    number_of_experiences: 1
    options:
      - id: o1
        name: Option
        number_of_projects: 1
        projects: [root]
`)
	write("experiences.yaml", `
experiences:
  - id: intern
    name: Internship
    xp: 1000
    implied_by: [kid]
    counts_double: true
`)

	cat, err := Load(dir)
	require.NoError(t, err)
	assert.NotNil(t, cat.Project("kid"))
	assert.Equal(t, 1, cat.Titles[0].Options[0].NumberOfProjects)
	assert.True(t, cat.Experience("intern").CountsDouble)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
