package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type curveFile struct {
	Curve Curve `yaml:"curve"`
}

type projectsFile struct {
	Projects []Project `yaml:"projects"`
}

type titlesFile struct {
	Titles []Title `yaml:"titles"`
}

type experiencesFile struct {
	Experiences []ExperienceKind `yaml:"experiences"`
}

// Load reads curve.yaml, projects.yaml, titles.yaml and experiences.yaml
// from dir, builds the project arena and validates the result.
func Load(dir string) (*Catalog, error) {
	var cf curveFile
	if err := readYAML(filepath.Join(dir, "curve.yaml"), &cf); err != nil {
		return nil, err
	}
	var pf projectsFile
	if err := readYAML(filepath.Join(dir, "projects.yaml"), &pf); err != nil {
		return nil, err
	}
	var tf titlesFile
	if err := readYAML(filepath.Join(dir, "titles.yaml"), &tf); err != nil {
		return nil, err
	}
	var ef experiencesFile
	if err := readYAML(filepath.Join(dir, "experiences.yaml"), &ef); err != nil {
		return nil, err
	}
	return build(cf.Curve, pf.Projects, tf.Titles, ef.Experiences)
}

func readYAML(path string, out interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// build assembles a Catalog from already-decoded data. Split out from Load
// so tests can construct catalogs without touching the filesystem.
func build(curve Curve, projects []Project, titles []Title, experiences []ExperienceKind) (*Catalog, error) {
	c := &Catalog{
		Curve:       curve,
		Titles:      titles,
		Experiences: experiences,
		projects:    make(map[string]*Project, len(projects)),
		impliedBy:   make(map[string]string),
		kinds:       make(map[string]*ExperienceKind, len(experiences)),
	}

	for i := range projects {
		p := &projects[i]
		if p.ID == "" {
			return nil, fmt.Errorf("project %q has no id", p.Name)
		}
		if _, dup := c.projects[p.ID]; dup {
			return nil, fmt.Errorf("duplicate project id %s", p.ID)
		}
		c.projects[p.ID] = p
	}

	// Fill parent back-references; roots are the projects nobody claims.
	childOf := make(map[string]string)
	for id, p := range c.projects {
		for _, child := range p.Children {
			childOf[child] = id
		}
	}
	for i := range projects {
		p := &projects[i]
		p.Parent = childOf[p.ID]
		if p.Parent == "" {
			c.roots = append(c.roots, p.ID)
		}
	}

	for i := range experiences {
		kind := &experiences[i]
		c.kinds[kind.ID] = kind
		for _, pid := range kind.ImpliedBy {
			c.impliedBy[pid] = kind.ID
		}
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// New builds a catalog from in-memory data, validating it the same way Load
// does.
func New(curve Curve, projects []Project, titles []Title, experiences []ExperienceKind) (*Catalog, error) {
	return build(curve, projects, titles, experiences)
}
