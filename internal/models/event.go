package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ObjectKindIssue is the only webhook kind the mirror acts on.
const ObjectKindIssue = "issue"

// IssueEvent is the GitLab issue webhook payload, reduced to the fields the
// mirror copies.
type IssueEvent struct {
	ObjectKind       string          `json:"object_kind"`
	ObjectAttributes IssueAttributes `json:"object_attributes"`
	Epic             *Titled         `json:"epic,omitempty"`
}

// IssueAttributes holds object_attributes. Pointer fields are optional in the
// payload and may also arrive as JSON null.
type IssueAttributes struct {
	ID             IssueID  `json:"id"`
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	URL            string   `json:"url"`
	Assignee       *Named   `json:"assignee,omitempty"`
	CreatedAt      string   `json:"created_at"`
	Milestone      *Titled  `json:"milestone,omitempty"`
	TimeEstimate   *float64 `json:"time_estimate,omitempty"`
	TotalTimeSpent *float64 `json:"total_time_spent,omitempty"`
	Labels         Labels   `json:"labels"`
}

type Named struct {
	Name string `json:"name"`
}

type Titled struct {
	Title string `json:"title"`
}

// IssueID is the issue identifier as a string. GitLab sends it as a number;
// both numbers and strings are accepted.
type IssueID string

func (id *IssueID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = IssueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = IssueID(n.String())
	return nil
}

func (id IssueID) String() string {
	return string(id)
}

// Labels is the ordered label list. Entries may be plain strings or GitLab
// label objects; objects contribute their title. Entries of any other shape
// are skipped.
type Labels []string

func (l *Labels) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Labels, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj Titled
		if err := json.Unmarshal(item, &obj); err == nil && strings.TrimSpace(obj.Title) != "" {
			out = append(out, obj.Title)
		}
	}
	*l = out
	return nil
}

// IsIssue reports whether the event should be mirrored.
func (e *IssueEvent) IsIssue() bool {
	return e.ObjectKind == ObjectKindIssue
}

// Envelope is the minimal view used to route any webhook before committing to
// a full decode.
type Envelope struct {
	ObjectKind string `json:"object_kind"`
}
