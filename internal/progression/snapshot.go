package progression

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventsTTL bounds how long a persisted event count stays trustworthy.
// Older counts are dropped at rehydration and refetched from the intranet.
const EventsTTL = 10 * time.Minute

// markEntry serializes as a two-element [id, mark] array to keep the
// snapshot format compact and stable.
type markEntry struct {
	ID   string
	Mark int
}

func (e markEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.ID, e.Mark})
}

func (e *markEntry) UnmarshalJSON(b []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &e.ID); err != nil {
		return fmt.Errorf("invalid mark entry id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Mark); err != nil {
		return fmt.Errorf("invalid mark entry value: %w", err)
	}
	return nil
}

// Snapshot is the serializable projection of the store's mutable state.
// Provenance sets and the calibration delta are deliberately absent:
// reconciliation reruns once per process and rebuilds them.
type Snapshot struct {
	ProjectMarks            []markEntry `json:"projectMarks"`
	ProfessionalExperiences []string    `json:"professionalExperiences"`
	CoalitionProjects       []string    `json:"coalitionProjects"`
	Events                  int         `json:"events"`
	EventsFetchedAt         int64       `json:"eventsFetchedAt"`
	TS                      int64       `json:"ts"`
}

// EncodeSnapshot marshals a snapshot to its wire form.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot unmarshals a snapshot from its wire form.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("malformed snapshot: %w", err)
	}
	return s, nil
}
