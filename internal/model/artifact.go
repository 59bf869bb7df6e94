package model

// Artifact is the persisted output of the podcast workflow, one per
// document identifier.
type Artifact struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Script     string `json:"script"`
	AudioRef   string `json:"audio_ref,omitempty"`
	ScriptOnly bool   `json:"script_only"`
	Ctime      int64  `json:"ctime"`
}
