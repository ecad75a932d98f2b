// Package extractor flattens issue webhook payloads into the records written
// to the mirror.
package extractor

import (
	"strings"
	"time"

	"github.com/telhawk-systems/issuemirror/internal/models"
)

// Label categories encoded as "<Category> :: <Value>".
const (
	CategoryEstado    = "Estado"
	CategoryPrioridad = "Prioridad"
	CategoryModulo    = "Modulo"
	CategoryTipo      = "Tipo"
)

// LabelDelimiter separates a label's category from its value.
const LabelDelimiter = " :: "

// gitlabTimeLayout is the timestamp form older GitLab releases send.
const gitlabTimeLayout = "2006-01-02 15:04:05 UTC"

// ExtractLabel returns the value of the first label in category, or
// models.Unspecified when no label matches.
func ExtractLabel(labels []string, category string) string {
	prefix := category + LabelDelimiter
	for _, label := range labels {
		if !strings.HasPrefix(label, prefix) {
			continue
		}
		return label[len(prefix):]
	}
	return models.Unspecified
}

// Normalize builds the record for event. It never fails: absent optional
// fields become sentinels, absent required fields become empty strings.
func Normalize(event *models.IssueEvent) models.NormalizedRecord {
	attrs := event.ObjectAttributes

	rec := models.NormalizedRecord{
		IssueID:      attrs.ID.String(),
		Title:        attrs.Title,
		URL:          attrs.URL,
		CreatedAt:    NormalizeTimestamp(attrs.CreatedAt),
		Assignee:     models.Unassigned,
		Milestone:    models.None,
		EpicTitle:    models.None,
		Estado:       ExtractLabel(attrs.Labels, CategoryEstado),
		Prioridad:    ExtractLabel(attrs.Labels, CategoryPrioridad),
		Modulo:       ExtractLabel(attrs.Labels, CategoryModulo),
		Tipo:         ExtractLabel(attrs.Labels, CategoryTipo),
		TimeEstimate: derefFloat(attrs.TimeEstimate),
		TimeSpent:    derefFloat(attrs.TotalTimeSpent),
	}

	if attrs.Description != nil {
		rec.Description = *attrs.Description
	}
	if attrs.Assignee != nil && attrs.Assignee.Name != "" {
		rec.Assignee = attrs.Assignee.Name
	}
	if attrs.Milestone != nil && attrs.Milestone.Title != "" {
		rec.Milestone = attrs.Milestone.Title
	}
	if event.Epic != nil && event.Epic.Title != "" {
		rec.EpicTitle = event.Epic.Title
	}

	return rec
}

// NormalizeTimestamp rewrites GitLab's "2006-01-02 15:04:05 UTC" form to
// RFC 3339 in UTC. Anything else is returned unchanged.
func NormalizeTimestamp(ts string) string {
	if t, err := time.Parse(gitlabTimeLayout, ts); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return ts
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
