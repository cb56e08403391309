package models

// DialogueLine is a single spoken turn in the transcript.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SegmentOutput holds the dialogue produced for one planned segment. Index is
// the segment's position in the plan and is assigned by the engine, not by the
// writing capability.
type SegmentOutput struct {
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	Lines    []DialogueLine `json:"lines"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
