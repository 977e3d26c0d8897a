package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DubbingTypeUnclassified marks a dubbing suggestion whose free-text
// description has not yet been matched to a standard term.
const DubbingTypeUnclassified = "unclassified"

// DubbingSuggestion is one entry of the nested dubbing field inside an
// analysis document. Type holds a standard term once classified.
type DubbingSuggestion struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AnalysisDocument is the JSON blob stored on an analysis record. Only
// the dubbing suggestions are touched by the engine; Extra preserves
// whatever else the analysis pipeline wrote.
type AnalysisDocument struct {
	Dubbing []DubbingSuggestion        `json:"-"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON splits the dubbing field out of the document and keeps
// every other field verbatim in Extra, so rewrites never disturb data
// the engine does not own.
func (d *AnalysisDocument) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw["dubbing"]; ok {
		if err := json.Unmarshal(v, &d.Dubbing); err != nil {
			return err
		}
		delete(raw, "dubbing")
	}
	d.Extra = raw
	return nil
}

// MarshalJSON merges the dubbing entries back with the preserved fields.
func (d AnalysisDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	if len(d.Dubbing) > 0 {
		v, err := json.Marshal(d.Dubbing)
		if err != nil {
			return nil, err
		}
		out["dubbing"] = v
	}
	return json.Marshal(out)
}

// AnalysisRecord is the engine's view of an analysis row: denormalized
// copies of vocabulary terms that backfill and rollback keep eventually
// consistent with standard_terms. The upload/extraction pipeline that
// creates these rows is an external collaborator.
type AnalysisRecord struct {
	ID        uuid.UUID        `json:"id"`
	Scenarios []string         `json:"scenarios"`
	Analysis  AnalysisDocument `json:"analysis"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
