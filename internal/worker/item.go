package worker

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"tilegrind/internal/pipeline"
)

// Kind selects the per-item pipeline a worker runs.
type Kind string

const (
	KindDownload Kind = "download"
	KindDenoise  Kind = "denoise"
	KindCorrect  Kind = "correct"
)

// Item is one unit of work, created by the partitioner and consumed exactly
// once by one worker process. It crosses the process boundary as JSON.
type Item struct {
	Index int    `json:"index"`
	Kind  Kind   `json:"kind"`
	Key   string `json:"key"`

	// Download fields.
	DestRoot     string           `json:"dest_root,omitempty"`
	TargetCount  int              `json:"target_count,omitempty"`
	ResumeOffset int              `json:"resume_offset,omitempty"`
	StagingDir   string           `json:"staging_dir,omitempty"`
	Stages       []pipeline.Stage `json:"stages,omitempty"`

	// Denoise and correct fields.
	SourcePath  string  `json:"source_path,omitempty"`
	StagingPath string  `json:"staging_path,omitempty"`
	OutputPath  string  `json:"output_path,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// DestDir returns the destination directory for a download item.
func (it Item) DestDir() string {
	return filepath.Join(it.DestRoot, it.Key)
}

// Encode renders the wire form handed to a worker process.
func (it Item) Encode() ([]byte, error) {
	return json.Marshal(it)
}

// DecodeItem parses the wire form read by a worker process.
func DecodeItem(data []byte) (Item, error) {
	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return Item{}, fmt.Errorf("decode work item: %w", err)
	}
	switch it.Kind {
	case KindDownload, KindDenoise, KindCorrect:
	default:
		return Item{}, fmt.Errorf("unknown work item kind %q", it.Kind)
	}
	return it, nil
}
