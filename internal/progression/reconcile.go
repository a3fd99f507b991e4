package progression

// ProfileValidation is one externally validated project from the intranet
// profile snapshot. XP carries the payload's own experience value, used as
// a fallback when the catalog no longer knows the project (deprecated or
// renamed curriculum entries). InCurriculum distinguishes validations from
// the student's active cursus from legacy ones.
type ProfileValidation struct {
	ProjectID    string
	Name         string
	FinalMark    int
	XP           float64
	InCurriculum bool
}

// ProfileData is the reconciliation input: the authoritative snapshot of
// what the student already validated, plus the cursus fractional level.
type ProfileData struct {
	Login       string
	Level       float64
	Validations []ProfileValidation
}

// ProcessInitialData reconciles an external profile snapshot into the
// store, exactly once per process. Validated projects become auto-fetched
// marks, projects that imply a professional experience select it, and the
// calibration delta absorbs whatever XP the catalog cannot reconstruct so
// the derived level matches the intranet's at the moment of reconciliation.
//
// Guarded by dataProcessed: a second call without a reset in between is a
// no-op. The computation itself is not idempotent (the delta depends on
// the state at call time), the guard is what makes reruns safe.
func (s *Store) ProcessInitialData(profile ProfileData) {
	s.mu.Lock()
	if s.dataProcessed {
		s.mu.Unlock()
		return
	}

	// Keyed by project id: a payload carrying duplicate entries for the
	// same project (intranet retries) must count it once, last mark wins.
	written := make(map[string]int, len(profile.Validations))
	for _, v := range profile.Validations {
		if v.FinalMark <= 0 {
			continue
		}
		mark := clampMark(v.FinalMark)

		if !v.InCurriculum {
			// Legacy validation: keep a best-effort base XP so the mark
			// still contributes to totals. Catalog wins when it still
			// carries the project, the payload value is the fallback.
			if p := s.catalog.Project(v.ProjectID); p != nil {
				s.oldProjects[v.ProjectID] = p.BaseXP
			} else {
				s.oldProjects[v.ProjectID] = v.XP
			}
		}

		s.marks[v.ProjectID] = mark
		s.autoMarks[v.ProjectID] = mark
		written[v.ProjectID] = mark

		if kindID, ok := s.catalog.ImpliedExperience(v.ProjectID); ok {
			if _, selected := s.experiences[kindID]; !selected {
				s.experiences[kindID] = FullMark
			}
			s.autoExperiences[kindID] = struct{}{}
		}
	}

	// The intranet's fractional level is authoritative. Interpolate it to
	// XP and let the delta cover the gap between that and what the catalog
	// reconstructs from the marks just written (no coalition bonus here).
	reported := s.catalog.Curve.XPForLevel(profile.Level)
	var local float64
	for id, mark := range written {
		local += s.baseXPLocked(id) * float64(mark) / 100
	}
	s.initialDelta = reported - local
	s.dataProcessed = true

	s.logger.Info().
		Float64("reported_level", profile.Level).
		Float64("reported_xp", reported).
		Float64("reconstructed_xp", local).
		Float64("delta", s.initialDelta).
		Int("validations", len(written)).
		Msg("initial profile data reconciled")

	s.mu.Unlock()
	s.persist()
}
