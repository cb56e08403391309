// Package web provides the HTTP surface for the dialogue workflow API.
package web

// CreateWorkflowRequest is the request body for creating and running a
// workflow. Exactly one of Content and ContentRef must be set; the service
// layer enforces this before any record is created.
type CreateWorkflowRequest struct {
	Name           string `json:"name"            validate:"required,min=3"`
	Content        string `json:"content"`
	ContentRef     string `json:"content_ref"`
	EpisodeProfile string `json:"episode_profile" validate:"required"`
	BriefingSuffix string `json:"briefing_suffix"`
	NumSegments    int    `json:"num_segments"    validate:"omitempty,min=1"`
}
