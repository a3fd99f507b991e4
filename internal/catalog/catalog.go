// Package catalog holds the static reference data for the progression
// simulator: the experience curve, the project forest, the certification
// titles and the professional experience kinds. The catalog is loaded once
// at startup and never mutated.
package catalog

import (
	"fmt"
	"strings"
)

// OptionalPrefix marks project names excluded from module-completion checks.
// Marked optional projects still contribute XP.
const OptionalPrefix = "(Optional)"

// CurveStep maps a discrete level to its cumulative XP threshold.
type CurveStep struct {
	Level int     `yaml:"level"`
	XP    float64 `yaml:"xp"`
}

// Curve is the experience curve, ascending by level.
type Curve []CurveStep

// Project is a node in the project forest. Children are stored as id lists
// and resolved through the catalog arena; the parent is a weak back-reference
// filled in at load time.
type Project struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	BaseXP   float64  `yaml:"xp"`
	Solo     bool     `yaml:"solo,omitempty"`
	Children []string `yaml:"children,omitempty"`

	Parent string `yaml:"-"`
}

// Optional reports whether the project is excluded from completion checks.
func (p *Project) Optional() bool {
	return strings.HasPrefix(p.Name, OptionalPrefix)
}

// Option is one qualifying project bundle of a title.
type Option struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Projects         []string `yaml:"projects"`
	NumberOfProjects int      `yaml:"number_of_projects"`
	Experience       float64  `yaml:"experience,omitempty"`
}

// Title is a certification track with its thresholds and options.
type Title struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Level               int      `yaml:"level"`
	NumberOfEvents      int      `yaml:"number_of_events"`
	NumberOfExperiences int      `yaml:"number_of_experiences"`
	Options             []Option `yaml:"options"`
}

// ExperienceKind is a professional experience category. ImpliedBy lists the
// project ids whose validation auto-selects this kind during reconciliation.
// A kind with CountsDouble set counts as two experiences toward title
// thresholds (2-year apprenticeship program rule).
type ExperienceKind struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	XP           float64  `yaml:"xp"`
	ImpliedBy    []string `yaml:"implied_by,omitempty"`
	CountsDouble bool     `yaml:"counts_double,omitempty"`
}

// Catalog is the loaded, validated reference data set.
type Catalog struct {
	Curve       Curve
	Titles      []Title
	Experiences []ExperienceKind

	projects  map[string]*Project
	roots     []string
	impliedBy map[string]string // project id -> experience kind id
	kinds     map[string]*ExperienceKind
}

// Project returns the project with the given id, or nil when absent.
func (c *Catalog) Project(id string) *Project {
	return c.projects[id]
}

// Roots returns the ids of the forest's root projects in catalog order.
func (c *Catalog) Roots() []string {
	return c.roots
}

// Title returns the title with the given id, or nil when absent.
func (c *Catalog) Title(id string) *Title {
	for i := range c.Titles {
		if c.Titles[i].ID == id {
			return &c.Titles[i]
		}
	}
	return nil
}

// Experience returns the experience kind with the given id, or nil.
func (c *Catalog) Experience(id string) *ExperienceKind {
	return c.kinds[id]
}

// ImpliedExperience returns the experience kind auto-selected by validating
// the given project, if any.
func (c *Catalog) ImpliedExperience(projectID string) (string, bool) {
	id, ok := c.impliedBy[projectID]
	return id, ok
}

// Walk visits the project with the given id and every descendant, depth
// first in child order. Unknown ids are a no-op.
func (c *Catalog) Walk(id string, fn func(*Project)) {
	p := c.projects[id]
	if p == nil {
		return
	}
	fn(p)
	for _, child := range p.Children {
		c.Walk(child, fn)
	}
}

// Descendants returns the ids of every project strictly below the given one.
func (c *Catalog) Descendants(id string) []string {
	p := c.projects[id]
	if p == nil {
		return nil
	}
	var ids []string
	for _, child := range p.Children {
		c.Walk(child, func(d *Project) {
			ids = append(ids, d.ID)
		})
	}
	return ids
}

// XPForLevel interpolates the cumulative XP for a fractional level against
// the curve. Levels at or below the first step clamp to the first step's XP,
// levels at or above the last clamp to the last.
func (c Curve) XPForLevel(level float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if level <= float64(c[0].Level) {
		return c[0].XP
	}
	last := c[len(c)-1]
	if level >= float64(last.Level) {
		return last.XP
	}
	for i := 0; i < len(c)-1; i++ {
		lo, hi := c[i], c[i+1]
		if level >= float64(lo.Level) && level < float64(hi.Level) {
			span := float64(hi.Level - lo.Level)
			frac := (level - float64(lo.Level)) / span
			return lo.XP + frac*(hi.XP-lo.XP)
		}
	}
	return last.XP
}

// LevelFloor returns the highest level whose threshold is at or below xp.
// Used for threshold comparisons; distinct from LevelDisplay on purpose.
func (c Curve) LevelFloor(xp float64) int {
	if len(c) == 0 {
		return 0
	}
	level := c[0].Level
	for _, step := range c {
		if step.XP <= xp {
			level = step.Level
		} else {
			break
		}
	}
	return level
}

// LevelDisplay returns the fractional level for xp, linearly interpolated
// between the bracketing curve steps. Cosmetic only; threshold checks use
// LevelFloor.
func (c Curve) LevelDisplay(xp float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if xp <= c[0].XP {
		return float64(c[0].Level)
	}
	last := c[len(c)-1]
	if xp >= last.XP {
		return float64(last.Level)
	}
	for i := 0; i < len(c)-1; i++ {
		lo, hi := c[i], c[i+1]
		if xp >= lo.XP && xp < hi.XP {
			span := hi.XP - lo.XP
			if span <= 0 {
				return float64(lo.Level)
			}
			frac := (xp - lo.XP) / span
			return float64(lo.Level) + frac*float64(hi.Level-lo.Level)
		}
	}
	return float64(last.Level)
}

// validate checks structural invariants: ascending curve, acyclic forest,
// resolvable child and option references.
func (c *Catalog) validate() error {
	for i := 1; i < len(c.Curve); i++ {
		if c.Curve[i].Level <= c.Curve[i-1].Level || c.Curve[i].XP < c.Curve[i-1].XP {
			return fmt.Errorf("curve is not ascending at level %d", c.Curve[i].Level)
		}
	}

	for id, p := range c.projects {
		for _, child := range p.Children {
			if c.projects[child] == nil {
				return fmt.Errorf("project %s references unknown child %s", id, child)
			}
		}
	}
	if err := c.checkAcyclic(); err != nil {
		return err
	}

	for _, t := range c.Titles {
		for _, opt := range t.Options {
			for _, pid := range opt.Projects {
				if c.projects[pid] == nil {
					return fmt.Errorf("title %s option %s references unknown project %s", t.ID, opt.ID, pid)
				}
			}
		}
	}
	return nil
}

func (c *Catalog) checkAcyclic() error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(c.projects))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case inStack:
			return fmt.Errorf("project forest contains a cycle through %s", id)
		case done:
			return nil
		}
		state[id] = inStack
		for _, child := range c.projects[id].Children {
			if err := visit(child); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for id := range c.projects {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
