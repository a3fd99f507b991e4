package intranet

import "time"

// profilePayload mirrors the intranet's user endpoint shape, reduced to
// the fields reconciliation needs.
type profilePayload struct {
	Login         string        `json:"login"`
	CursusUsers   []cursusUser  `json:"cursus_users"`
	ProjectsUsers []projectUser `json:"projects_users"`
}

type cursusUser struct {
	Level  float64 `json:"level"`
	Cursus struct {
		ID   int    `json:"id"`
		Slug string `json:"slug"`
	} `json:"cursus"`
}

type projectUser struct {
	FinalMark  *int       `json:"final_mark"`
	Validated  bool       `json:"validated?"`
	MarkedAt   *time.Time `json:"marked_at"`
	CursusIDs  []int      `json:"cursus_ids"`
	Experience float64    `json:"experience"`
	Project    struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	} `json:"project"`
}

type eventPayload struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	BeginAt *time.Time `json:"begin_at"`
}
