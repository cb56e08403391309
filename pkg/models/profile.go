package models

// ExecutionMode controls how the writing fan-out runs.
//
// In parallel mode every segment writer is launched concurrently from the same
// pre-write snapshot, so no writer can observe a sibling's output: continuity
// context is empty by contract. In sequential mode writers run one at a time
// and each receives the in-memory outputs of the segments before it, trading
// speed for real cross-segment continuity.
type ExecutionMode string

const (
	ExecutionModeParallel   ExecutionMode = "parallel"
	ExecutionModeSequential ExecutionMode = "sequential"
)

// EpisodeProfile bundles the reusable configuration for one kind of episode.
type EpisodeProfile struct {
	Name            string        `json:"name"             yaml:"name"             validate:"required"`
	Description     string        `json:"description"      yaml:"description"`
	Briefing        string        `json:"briefing"         yaml:"briefing"         validate:"required"`
	SpeakerProfile  string        `json:"speaker_profile"  yaml:"speaker_profile"  validate:"required"`
	NumSegments     int           `json:"num_segments"     yaml:"num_segments"     validate:"min=1,max=20"`
	ExecutionMode   ExecutionMode `json:"execution_mode"   yaml:"execution_mode"   validate:"omitempty,oneof=parallel sequential"`
	OutlineModel    string        `json:"outline_model"    yaml:"outline_model"`
	TranscriptModel string        `json:"transcript_model" yaml:"transcript_model"`
	MinTurns        int           `json:"min_turns"        yaml:"min_turns"`
	MaxTurns        int           `json:"max_turns"        yaml:"max_turns"`
}

// Speaker is one voice in the roster.
type Speaker struct {
	Name    string `json:"name"    yaml:"name"    validate:"required"`
	Persona string `json:"persona" yaml:"persona"`
	Voice   string `json:"voice"   yaml:"voice"`
}

// SpeakerProfile is a named roster of speakers.
type SpeakerProfile struct {
	Name     string    `json:"name"     yaml:"name"     validate:"required"`
	Speakers []Speaker `json:"speakers" yaml:"speakers" validate:"required,min=1,dive"`
}
