package pipeline

import "encoding/json"

// Stage is one engine stage descriptor. Only the fields relevant to the
// stage's type are populated; the rest marshal away.
type Stage struct {
	Type       string   `json:"type"`
	Tag        string   `json:"tag,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	Polygon    []string `json:"polygon,omitempty"`
	InSRS      string   `json:"in_srs,omitempty"`
	OutSRS     string   `json:"out_srs,omitempty"`
	Limits     string   `json:"limits,omitempty"`
	Method     string   `json:"method,omitempty"`
	MeanK      int      `json:"mean_k,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty"`
}

// Pipeline is the ordered stage list in the engine's wire format.
type Pipeline struct {
	Stages []Stage `json:"pipeline"`
}

// Marshal renders the pipeline JSON fed to the engine.
func (p Pipeline) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "    ")
}
