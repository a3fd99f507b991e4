// Package progression implements the RNCP simulation engine: a mutable
// store of project marks, professional experiences, coalition bonuses and
// events, with derived XP, level and completion computations on top.
//
// The store is the single owner of mutable simulation state. Every mutation
// persists a snapshot before returning; derived getters never mutate.
// Missing catalog references degrade to zero contribution instead of
// erroring: the simulator is a best-effort estimate, not a system of record.
package progression

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusdash/rncpsim/internal/catalog"
	"github.com/campusdash/rncpsim/internal/persistence"
)

// CoalitionBonus is the multiplier applied to coalition-flagged projects.
// It only applies to manually added marks, never to auto-fetched ones.
const CoalitionBonus = 1.042

const (
	// MaxMark is the highest project mark (validation with bonus).
	MaxMark = 125
	// FullMark is a plain validation and the default when toggling on.
	FullMark = 100
)

// Store holds the mutable simulation state for one student.
type Store struct {
	mu sync.RWMutex

	catalog   *catalog.Catalog
	snapshots persistence.SnapshotStore
	login     string
	logger    zerolog.Logger
	now       func() time.Time

	marks           map[string]int
	autoMarks       map[string]int
	experiences     map[string]int // kind id -> mark percentage
	autoExperiences map[string]struct{}
	coalition       map[string]struct{}
	oldProjects     map[string]float64 // legacy project id -> best-effort base XP

	events          int
	eventsFetchedAt time.Time

	initialDelta  float64
	dataProcessed bool
}

// NewStore creates an empty store. snapshots may be nil, in which case the
// store runs in-memory only.
func NewStore(cat *catalog.Catalog, snapshots persistence.SnapshotStore, login string, logger zerolog.Logger) *Store {
	return &Store{
		catalog:         cat,
		snapshots:       snapshots,
		login:           login,
		logger:          logger.With().Str("component", "progression").Str("login", login).Logger(),
		now:             time.Now,
		marks:           make(map[string]int),
		autoMarks:       make(map[string]int),
		experiences:     make(map[string]int),
		autoExperiences: make(map[string]struct{}),
		coalition:       make(map[string]struct{}),
		oldProjects:     make(map[string]float64),
	}
}

// Rehydrate restores persisted state. A missing or malformed snapshot
// leaves the store in its default state; event counts older than EventsTTL
// are dropped.
func (s *Store) Rehydrate(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	b, err := s.snapshots.Load(ctx, s.login)
	if errors.Is(err, persistence.ErrSnapshotNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot load failed, starting empty")
		return
	}
	snap, err := DecodeSnapshot(b)
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot unreadable, starting empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range snap.ProjectMarks {
		s.marks[e.ID] = e.Mark
	}
	for _, id := range snap.ProfessionalExperiences {
		s.experiences[id] = FullMark
	}
	for _, id := range snap.CoalitionProjects {
		s.coalition[id] = struct{}{}
	}
	fetchedAt := time.UnixMilli(snap.EventsFetchedAt)
	if snap.EventsFetchedAt > 0 && s.now().Sub(fetchedAt) < EventsTTL {
		s.events = snap.Events
		s.eventsFetchedAt = fetchedAt
	}
}

// clampMark bounds a project mark to [0, MaxMark].
func clampMark(mark int) int {
	if mark < 0 {
		return 0
	}
	if mark > MaxMark {
		return MaxMark
	}
	return mark
}

// SetProjectMark records a mark for the project. With cascade (the default
// UI behavior) the same mark is applied to every non-optional descendant,
// so a single click validates a whole module subtree.
func (s *Store) SetProjectMark(id string, mark int, cascade bool) {
	mark = clampMark(mark)

	s.mu.Lock()
	s.marks[id] = mark
	if cascade {
		for _, did := range s.catalog.Descendants(id) {
			if p := s.catalog.Project(did); p != nil && p.Optional() {
				continue
			}
			s.marks[did] = mark
		}
	}
	s.mu.Unlock()
	s.persist()
}

// RemoveProject deletes the mark for the project and all of its
// descendants. Removing an absent mark is a no-op. Auto-fetched provenance
// is untouched: it only ever clears through an explicit reset.
func (s *Store) RemoveProject(id string) {
	s.mu.Lock()
	delete(s.marks, id)
	for _, did := range s.catalog.Descendants(id) {
		delete(s.marks, did)
	}
	s.mu.Unlock()
	s.persist()
}

// SetExperience adds or removes a professional experience selection. Newly
// added selections start at a full mark.
func (s *Store) SetExperience(id string, enabled bool) {
	s.mu.Lock()
	if enabled {
		if _, ok := s.experiences[id]; !ok {
			s.experiences[id] = FullMark
		}
	} else {
		delete(s.experiences, id)
	}
	s.mu.Unlock()
	s.persist()
}

// ToggleExperience flips a professional experience selection.
func (s *Store) ToggleExperience(id string) {
	s.mu.Lock()
	if _, ok := s.experiences[id]; ok {
		delete(s.experiences, id)
	} else {
		s.experiences[id] = FullMark
	}
	s.mu.Unlock()
	s.persist()
}

// SetExperienceMark sets the mark percentage for a selected experience.
// The store does not clamp here: the UI constrains input to [0,100] and the
// historical engine accepted whatever it was given.
func (s *Store) SetExperienceMark(id string, pct int) {
	s.mu.Lock()
	if _, ok := s.experiences[id]; ok {
		s.experiences[id] = pct
	}
	s.mu.Unlock()
	s.persist()
}

// ToggleCoalition flips the coalition bonus flag for a project.
func (s *Store) ToggleCoalition(id string) {
	s.mu.Lock()
	if _, ok := s.coalition[id]; ok {
		delete(s.coalition, id)
	} else {
		s.coalition[id] = struct{}{}
	}
	s.mu.Unlock()
	s.persist()
}

// SetEvents overwrites the event count and stamps its fetch time.
func (s *Store) SetEvents(count int) {
	s.mu.Lock()
	s.events = count
	s.eventsFetchedAt = s.now()
	s.mu.Unlock()
	s.persist()
}

// Events returns the current event count.
func (s *Store) Events() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// EventsStale reports whether the event count should be refetched.
func (s *Store) EventsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsFetchedAt.IsZero() || s.now().Sub(s.eventsFetchedAt) >= EventsTTL
}

// DataProcessed reports whether initial reconciliation already ran.
func (s *Store) DataProcessed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataProcessed
}

// ResetAll clears every piece of mutable state, including auto-fetched
// provenance and the calibration delta, and persists the empty snapshot.
func (s *Store) ResetAll() {
	s.mu.Lock()
	s.marks = make(map[string]int)
	s.autoMarks = make(map[string]int)
	s.experiences = make(map[string]int)
	s.autoExperiences = make(map[string]struct{})
	s.coalition = make(map[string]struct{})
	s.oldProjects = make(map[string]float64)
	s.events = 0
	s.eventsFetchedAt = time.Time{}
	s.initialDelta = 0
	s.dataProcessed = false
	s.mu.Unlock()
	s.persist()
}

// SoftReset drops manual additions but keeps the auto-fetched baseline and
// the event count. The coalition set clears entirely (bonuses are manual by
// definition) and dataProcessed drops so the next reconciliation pass
// recomputes the calibration delta against the preserved baseline.
func (s *Store) SoftReset() {
	s.mu.Lock()
	marks := make(map[string]int, len(s.autoMarks))
	for id, mark := range s.autoMarks {
		marks[id] = mark
	}
	s.marks = marks

	experiences := make(map[string]int, len(s.autoExperiences))
	for id := range s.autoExperiences {
		experiences[id] = FullMark
	}
	s.experiences = experiences

	s.coalition = make(map[string]struct{})
	s.dataProcessed = false
	s.mu.Unlock()
	s.persist()
}

// Snapshot returns the serializable projection of the current state with
// deterministic ordering.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		ProjectMarks:            make([]markEntry, 0, len(s.marks)),
		ProfessionalExperiences: make([]string, 0, len(s.experiences)),
		CoalitionProjects:       make([]string, 0, len(s.coalition)),
		Events:                  s.events,
		TS:                      s.now().UnixMilli(),
	}
	if !s.eventsFetchedAt.IsZero() {
		snap.EventsFetchedAt = s.eventsFetchedAt.UnixMilli()
	}
	for id, mark := range s.marks {
		snap.ProjectMarks = append(snap.ProjectMarks, markEntry{ID: id, Mark: mark})
	}
	sort.Slice(snap.ProjectMarks, func(i, j int) bool {
		return snap.ProjectMarks[i].ID < snap.ProjectMarks[j].ID
	})
	for id := range s.experiences {
		snap.ProfessionalExperiences = append(snap.ProfessionalExperiences, id)
	}
	sort.Strings(snap.ProfessionalExperiences)
	for id := range s.coalition {
		snap.CoalitionProjects = append(snap.CoalitionProjects, id)
	}
	sort.Strings(snap.CoalitionProjects)
	return snap
}

// persist writes the current snapshot. Failures are logged, never
// propagated: a lost write costs at most one session of manual edits.
func (s *Store) persist() {
	if s.snapshots == nil {
		return
	}
	b, err := EncodeSnapshot(s.Snapshot())
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot encode failed")
		return
	}
	if err := s.snapshots.Save(context.Background(), s.login, b); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot persist failed")
	}
}
