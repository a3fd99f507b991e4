package progression

import "github.com/campusdash/rncpsim/internal/catalog"

// ExperienceCount returns how many professional experiences count toward
// title thresholds. A kind flagged counts_double adds one extra: the
// 2-year apprenticeship counts as two experiences under program rules.
func (s *Store) ExperienceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := len(s.experiences)
	for id := range s.experiences {
		if kind := s.catalog.Experience(id); kind != nil && kind.CountsDouble {
			count++
		}
	}
	return count
}

// OptionRequirementsComplete reports whether a title option is satisfied:
// enough of its referenced projects are complete modules, and the option's
// bonus-XP threshold (when set) is met.
func (s *Store) OptionRequirementsComplete(opt *catalog.Option) bool {
	complete := 0
	for _, id := range opt.Projects {
		if s.IsModuleComplete(id) {
			complete++
		}
	}
	if complete < opt.NumberOfProjects {
		return false
	}
	if opt.Experience > 0 && s.ExperienceForOption(opt) < opt.Experience {
		return false
	}
	return true
}

// TitleRequirementsComplete reports whether a title's level, event and
// experience thresholds are met. allOptionsComplete is supplied by the
// caller from per-option evaluation; keeping it outside avoids baking
// presentation-collected state into the evaluator.
func (s *Store) TitleRequirementsComplete(t *catalog.Title, allOptionsComplete bool) bool {
	if !allOptionsComplete {
		return false
	}
	if s.Level(s.SelectedXP()) < t.Level {
		return false
	}
	if s.Events() < t.NumberOfEvents {
		return false
	}
	return s.ExperienceCount() >= t.NumberOfExperiences
}

// TitleComplete evaluates a title end to end, options included. This is
// the convenience form the HTTP layer uses.
func (s *Store) TitleComplete(t *catalog.Title) bool {
	all := true
	for i := range t.Options {
		if !s.OptionRequirementsComplete(&t.Options[i]) {
			all = false
			break
		}
	}
	return s.TitleRequirementsComplete(t, all)
}
