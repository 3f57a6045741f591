package domain

import "time"

// ResourceRef points at an artifact produced by a step (an uploaded file's
// id, a created page's url) so later steps or later sessions can refer to
// it by logical key. In the hot and warm tiers the most recent write for a
// key wins; the cold tier keeps every version.
type ResourceRef struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	RunID     string      `json:"run_id,omitempty"`
	StepID    string      `json:"step_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
