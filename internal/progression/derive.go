package progression

import "github.com/campusdash/rncpsim/internal/catalog"

// baseXPLocked resolves the base XP for a marked project id: the catalog
// entry when the project is in the current curriculum, the reconciled
// legacy value otherwise, zero when neither knows it.
func (s *Store) baseXPLocked(id string) float64 {
	if p := s.catalog.Project(id); p != nil {
		return p.BaseXP
	}
	if xp, ok := s.oldProjects[id]; ok {
		return xp
	}
	return 0
}

// bonusLocked returns the coalition multiplier for a marked project id.
// Auto-fetched marks never receive the bonus: it rewards projects the
// student adds going forward, not already-validated work.
func (s *Store) bonusLocked(id string) float64 {
	if _, flagged := s.coalition[id]; !flagged {
		return 1
	}
	if _, auto := s.autoMarks[id]; auto {
		return 1
	}
	return CoalitionBonus
}

// SelectedXP is the authoritative total: experience contributions plus
// mark-weighted project contributions plus the calibration delta.
func (s *Store) SelectedXP() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	xp := s.initialDelta
	for id, pct := range s.experiences {
		if kind := s.catalog.Experience(id); kind != nil {
			xp += kind.XP * float64(pct) / 100
		}
	}
	for id, mark := range s.marks {
		xp += s.baseXPLocked(id) * float64(mark) / 100 * s.bonusLocked(id)
	}
	return xp
}

// Level returns the floor level for an XP total, for threshold checks.
func (s *Store) Level(xp float64) int {
	return s.catalog.Curve.LevelFloor(xp)
}

// DisplayLevel returns the interpolated fractional level for an XP total.
// Kept separate from Level on purpose: unifying the two would silently
// change completion semantics.
func (s *Store) DisplayLevel(xp float64) float64 {
	return s.catalog.Curve.LevelDisplay(xp)
}

// InitialDelta returns the calibration delta from the last reconciliation.
func (s *Store) InitialDelta() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialDelta
}

// ProjectXP is the static worth of a project subtree: base XP summed over
// the project and every descendant, marks ignored. Catalog display only.
func (s *Store) ProjectXP(id string) float64 {
	var xp float64
	s.catalog.Walk(id, func(p *catalog.Project) {
		xp += p.BaseXP
	})
	return xp
}

// DynamicProjectXP is the achieved XP of a project subtree: each marked
// node contributes its mark-weighted base XP, with the same
// coalition-unless-auto rule as SelectedXP. Optional projects contribute
// when marked even though they are excluded from completion.
func (s *Store) DynamicProjectXP(id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var xp float64
	s.catalog.Walk(id, func(p *catalog.Project) {
		mark, ok := s.marks[p.ID]
		if !ok {
			return
		}
		xp += p.BaseXP * float64(mark) / 100 * s.bonusLocked(p.ID)
	})
	return xp
}

// IsModuleComplete reports completion for a project. A parent is complete
// when every non-optional direct child carries a mark; a leaf when it
// carries one itself. Grandchildren are deliberately not consulted; the
// curriculum keeps modules one level deep and the historical engine
// behaves this way.
func (s *Store) IsModuleComplete(id string) bool {
	p := s.catalog.Project(id)
	if p == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(p.Children) == 0 {
		return s.marks[id] > 0
	}
	for _, cid := range p.Children {
		child := s.catalog.Project(cid)
		if child == nil || child.Optional() {
			continue
		}
		if s.marks[cid] <= 0 {
			return false
		}
	}
	return true
}

// ExperienceForOption sums achieved XP over an option's referenced
// projects.
func (s *Store) ExperienceForOption(opt *catalog.Option) float64 {
	var xp float64
	for _, id := range opt.Projects {
		xp += s.DynamicProjectXP(id)
	}
	return xp
}

// Mark returns the current mark for a project id, zero when unmarked.
func (s *Store) Mark(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mark, ok := s.marks[id]
	return mark, ok
}

// IsAutoFetched reports whether a mark came from reconciliation rather
// than a manual edit.
func (s *Store) IsAutoFetched(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.autoMarks[id]
	return ok
}

// HasCoalition reports whether the coalition bonus is flagged for an id.
func (s *Store) HasCoalition(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.coalition[id]
	return ok
}

// SelectedExperiences returns the selected experience kind ids and marks.
func (s *Store) SelectedExperiences() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.experiences))
	for id, pct := range s.experiences {
		out[id] = pct
	}
	return out
}
