package pitch

import "encoding/json"

// Provenance identifies which estimator produced a pitch estimate.
type Provenance int

const (
	ProvenanceNone Provenance = iota
	ProvenanceLocal
	ProvenanceRemote
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceLocal:
		return "local"
	case ProvenanceRemote:
		return "remote"
	default:
		return "none"
	}
}

// MarshalJSON encodes provenance as its lowercase name for client payloads.
func (p Provenance) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// PitchEstimate is one estimator's opinion for a single analysis window.
// FrequencyHz of 0 means unvoiced or unknown, and then Confidence is 0 too.
type PitchEstimate struct {
	FrequencyHz float64    `json:"frequency"`
	Confidence  float64    `json:"confidence"`
	Provenance  Provenance `json:"provenance"`
}

// Unvoiced reports whether the estimate carries no pitch.
func (e PitchEstimate) Unvoiced() bool {
	return e.FrequencyHz <= 0
}
