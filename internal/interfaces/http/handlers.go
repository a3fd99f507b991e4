package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/campusdash/rncpsim/internal/catalog"
	"github.com/campusdash/rncpsim/internal/progression"
)

// ProfileFetcher is the slice of the intranet client the sync endpoint
// needs. Narrowed to an interface so handler tests can stub it.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, login string) (progression.ProfileData, error)
	FetchEventCount(ctx context.Context, login string) (int, error)
}

// Handlers serves the simulator API on top of the progression store.
type Handlers struct {
	store    *progression.Store
	catalog  *catalog.Catalog
	intranet ProfileFetcher
	hub      *Hub
	metrics  *MetricsRegistry
	login    string
	logger   zerolog.Logger
}

// NewHandlers wires the handler set. intranet may be nil, in which case
// the sync endpoint reports the collaborator as unavailable.
func NewHandlers(store *progression.Store, cat *catalog.Catalog, fetcher ProfileFetcher, hub *Hub, metrics *MetricsRegistry, login string, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:    store,
		catalog:  cat,
		intranet: fetcher,
		hub:      hub,
		metrics:  metrics,
		login:    login,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// completedTitles returns the ids of titles whose requirements are met.
func (h *Handlers) completedTitles() map[string]bool {
	out := make(map[string]bool, len(h.catalog.Titles))
	for i := range h.catalog.Titles {
		t := &h.catalog.Titles[i]
		out[t.ID] = h.store.TitleComplete(t)
	}
	return out
}

// mutate runs op inside a before/after completion evaluation, refreshes
// gauges and broadcasts the resulting progress event. Titles flipping from
// unmet to met ride along so the UI can celebrate exactly once.
func (h *Handlers) mutate(op string, fn func()) {
	before := h.completedTitles()
	fn()
	after := h.completedTitles()

	h.metrics.Mutations.WithLabelValues(op).Inc()

	xp := h.store.SelectedXP()
	h.metrics.SelectedXP.Set(xp)

	var completed []string
	for id, done := range after {
		if done {
			h.metrics.TitleComplete.WithLabelValues(id).Set(1)
		} else {
			h.metrics.TitleComplete.WithLabelValues(id).Set(0)
		}
		if done && !before[id] {
			completed = append(completed, id)
		}
	}
	if len(completed) > 0 {
		h.logger.Info().Strs("titles", completed).Msg("title requirements newly complete")
	}

	h.hub.Broadcast(ProgressEvent{
		XP:        xp,
		Level:     h.store.DisplayLevel(xp),
		Events:    h.store.Events(),
		Completed: completed,
	})
}

// Health serves the liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"login":       h.login,
		"processed":   h.store.DataProcessed(),
		"subscribers": h.hub.ClientCount(),
	})
}

type progressResponse struct {
	Login       string  `json:"login"`
	XP          float64 `json:"xp"`
	Level       float64 `json:"level"`
	LevelFloor  int     `json:"levelFloor"`
	Events      int     `json:"events"`
	Delta       float64 `json:"delta"`
	Processed   bool    `json:"processed"`
	Experiences int     `json:"experiences"`
}

// Progress serves the derived state summary.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	xp := h.store.SelectedXP()
	writeJSON(w, http.StatusOK, progressResponse{
		Login:       h.login,
		XP:          xp,
		Level:       h.store.DisplayLevel(xp),
		LevelFloor:  h.store.Level(xp),
		Events:      h.store.Events(),
		Delta:       h.store.InitialDelta(),
		Processed:   h.store.DataProcessed(),
		Experiences: h.store.ExperienceCount(),
	})
}

type projectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	StaticXP    float64 `json:"staticXp"`
	AchievedXP  float64 `json:"achievedXp"`
	Mark        int     `json:"mark"`
	Marked      bool    `json:"marked"`
	Complete    bool    `json:"complete"`
	AutoFetched bool    `json:"autoFetched"`
	Coalition   bool    `json:"coalition"`
}

func (h *Handlers) projectResponse(p *catalog.Project) projectResponse {
	mark, marked := h.store.Mark(p.ID)
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		StaticXP:    h.store.ProjectXP(p.ID),
		AchievedXP:  h.store.DynamicProjectXP(p.ID),
		Mark:        mark,
		Marked:      marked,
		Complete:    h.store.IsModuleComplete(p.ID),
		AutoFetched: h.store.IsAutoFetched(p.ID),
		Coalition:   h.store.HasCoalition(p.ID),
	}
}

// Projects lists the forest roots with derived values.
func (h *Handlers) Projects(w http.ResponseWriter, r *http.Request) {
	out := make([]projectResponse, 0, len(h.catalog.Roots()))
	for _, id := range h.catalog.Roots() {
		out = append(out, h.projectResponse(h.catalog.Project(id)))
	}
	writeJSON(w, http.StatusOK, out)
}

// Project serves one project's derived values.
func (h *Handlers) Project(w http.ResponseWriter, r *http.Request) {
	p := h.catalog.Project(mux.Vars(r)["id"])
	if p == nil {
		writeError(w, http.StatusNotFound, "unknown project")
		return
	}
	writeJSON(w, http.StatusOK, h.projectResponse(p))
}

type setMarkRequest struct {
	Mark    int   `json:"mark"`
	Cascade *bool `json:"cascade"`
}

// SetMark records a project mark, cascading to the subtree by default.
func (h *Handlers) SetMark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req setMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	cascade := true
	if req.Cascade != nil {
		cascade = *req.Cascade
	}
	h.mutate("set_mark", func() {
		h.store.SetProjectMark(id, req.Mark, cascade)
	})
	h.Progress(w, r)
}

// RemoveProject unmarks a project subtree.
func (h *Handlers) RemoveProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.mutate("remove_project", func() {
		h.store.RemoveProject(id)
	})
	h.Progress(w, r)
}

// ToggleExperience flips a professional experience selection.
func (h *Handlers) ToggleExperience(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.catalog.Experience(id) == nil {
		writeError(w, http.StatusNotFound, "unknown experience")
		return
	}
	h.mutate("toggle_experience", func() {
		h.store.ToggleExperience(id)
	})
	h.Progress(w, r)
}

type experienceMarkRequest struct {
	Mark int `json:"mark"`
}

// SetExperienceMark updates the mark percentage of a selected experience.
func (h *Handlers) SetExperienceMark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req experienceMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.mutate("set_experience_mark", func() {
		h.store.SetExperienceMark(id, req.Mark)
	})
	h.Progress(w, r)
}

// ToggleCoalition flips the coalition bonus flag for a project.
func (h *Handlers) ToggleCoalition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.mutate("toggle_coalition", func() {
		h.store.ToggleCoalition(id)
	})
	h.Progress(w, r)
}

type optionResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Complete         bool    `json:"complete"`
	CompleteProjects int     `json:"completeProjects"`
	RequiredProjects int     `json:"requiredProjects"`
	XP               float64 `json:"xp"`
	RequiredXP       float64 `json:"requiredXp,omitempty"`
}

type titleResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Complete    bool             `json:"complete"`
	Level       int              `json:"level"`
	Events      int              `json:"events"`
	Experiences int              `json:"experiences"`
	Options     []optionResponse `json:"options"`
}

func (h *Handlers) titleResponse(t *catalog.Title) titleResponse {
	out := titleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Complete:    h.store.TitleComplete(t),
		Level:       t.Level,
		Events:      t.NumberOfEvents,
		Experiences: t.NumberOfExperiences,
	}
	for i := range t.Options {
		opt := &t.Options[i]
		complete := 0
		for _, pid := range opt.Projects {
			if h.store.IsModuleComplete(pid) {
				complete++
			}
		}
		out.Options = append(out.Options, optionResponse{
			ID:               opt.ID,
			Name:             opt.Name,
			Complete:         h.store.OptionRequirementsComplete(opt),
			CompleteProjects: complete,
			RequiredProjects: opt.NumberOfProjects,
			XP:               h.store.ExperienceForOption(opt),
			RequiredXP:       opt.Experience,
		})
	}
	return out
}

// Titles lists every title with completion state.
func (h *Handlers) Titles(w http.ResponseWriter, r *http.Request) {
	out := make([]titleResponse, 0, len(h.catalog.Titles))
	for i := range h.catalog.Titles {
		out = append(out, h.titleResponse(&h.catalog.Titles[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Title serves one title's completion detail.
func (h *Handlers) Title(w http.ResponseWriter, r *http.Request) {
	t := h.catalog.Title(mux.Vars(r)["id"])
	if t == nil {
		writeError(w, http.StatusNotFound, "unknown title")
		return
	}
	writeJSON(w, http.StatusOK, h.titleResponse(t))
}

// Sync pulls the profile and event count from the intranet and runs the
// reconciliation pass. Reconciliation is one-shot per process; repeated
// syncs only refresh the event count.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	if h.intranet == nil {
		writeError(w, http.StatusServiceUnavailable, "intranet client not configured")
		return
	}
	ctx := r.Context()

	if !h.store.DataProcessed() {
		profile, err := h.intranet.FetchProfile(ctx, h.login)
		if err != nil {
			h.metrics.IntranetRequests.WithLabelValues("profile", "error").Inc()
			h.logger.Warn().Err(err).Msg("profile fetch failed")
			writeError(w, http.StatusBadGateway, "profile fetch failed")
			return
		}
		h.metrics.IntranetRequests.WithLabelValues("profile", "ok").Inc()
		h.mutate("reconcile", func() {
			h.store.ProcessInitialData(profile)
		})
	}

	if h.store.EventsStale() {
		count, err := h.intranet.FetchEventCount(ctx, h.login)
		if err != nil {
			// Stale events are tolerable; the profile part already landed.
			h.metrics.IntranetRequests.WithLabelValues("events", "error").Inc()
			h.logger.Warn().Err(err).Msg("event fetch failed")
		} else {
			h.metrics.IntranetRequests.WithLabelValues("events", "ok").Inc()
			h.mutate("set_events", func() {
				h.store.SetEvents(count)
			})
		}
	}

	h.Progress(w, r)
}

type resetRequest struct {
	Soft bool `json:"soft"`
}

// Reset clears the store. A soft reset keeps the auto-fetched baseline and
// the event count; a full reset clears everything.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Soft {
		h.mutate("soft_reset", func() { h.store.SoftReset() })
	} else {
		h.mutate("reset", func() { h.store.ResetAll() })
	}
	h.Progress(w, r)
}

// NotFound is the fallback JSON 404.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
