package models

// Sentinel values written when the source issue leaves a field empty.
const (
	Unassigned  = "unassigned"
	None        = "none"
	Unspecified = "unspecified"
)

// NormalizedRecord is one issue flattened into the values written to the
// mirror. It is built once per event and never mutated.
type NormalizedRecord struct {
	IssueID      string  `json:"issue_id" yaml:"issue_id"`
	Title        string  `json:"title" yaml:"title"`
	Description  string  `json:"description" yaml:"description"`
	URL          string  `json:"url" yaml:"url"`
	Assignee     string  `json:"assignee" yaml:"assignee"`
	CreatedAt    string  `json:"created_at" yaml:"created_at"`
	Milestone    string  `json:"milestone" yaml:"milestone"`
	TimeEstimate float64 `json:"time_estimate" yaml:"time_estimate"`
	TimeSpent    float64 `json:"time_spent" yaml:"time_spent"`
	EpicTitle    string  `json:"epic_title" yaml:"epic_title"`
	Estado       string  `json:"estado" yaml:"estado"`
	Prioridad    string  `json:"prioridad" yaml:"prioridad"`
	Modulo       string  `json:"modulo" yaml:"modulo"`
	Tipo         string  `json:"tipo" yaml:"tipo"`
}
