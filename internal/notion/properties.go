package notion

import (
	"unicode/utf8"

	"github.com/telhawk-systems/issuemirror/internal/models"
)

// Property names in the target database.
const (
	PropTitle        = "Título"
	PropDescription  = "Descripción"
	PropIssueID      = "Issue ID"
	PropURL          = "URL"
	PropAssignee     = "Assignee"
	PropCreatedAt    = "Created At (UTC)"
	PropMilestone    = "Milestone"
	PropTimeEstimate = "Time Estimate"
	PropTimeSpent    = "Time Spent"
	PropEpicTitle    = "Epic Title"
	PropEstado       = "Estado"
	PropPrioridad    = "Prioridad"
	PropModulo       = "Modulo"
	PropTipo         = "Tipo"
)

// MaxTextContent is the longest content Notion accepts in one text object.
const MaxTextContent = 2000

// MaxTextBlocks is the most text objects Notion accepts in one rich_text or
// title array. Content past MaxTextBlocks*MaxTextContent runes is dropped.
const MaxTextBlocks = 100

// Properties maps property names to their typed values.
type Properties map[string]PropertyValue

// PropertyValue is one typed property. Exactly one field is set.
type PropertyValue struct {
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	URL      *string    `json:"url,omitempty"`
	Date     *Date      `json:"date,omitempty"`
	Number   *float64   `json:"number,omitempty"`
	Select   *Select    `json:"select,omitempty"`
}

type RichText struct {
	Text TextContent `json:"text"`
}

type TextContent struct {
	Content string `json:"content"`
}

type Date struct {
	Start string `json:"start"`
}

type Select struct {
	Name string `json:"name"`
}

// BuildProperties maps rec onto the database schema. The Issue ID property is
// only included when includeIssueID is set, since it is written once at
// creation and never changed.
func BuildProperties(rec models.NormalizedRecord, includeIssueID bool) Properties {
	props := Properties{
		PropTitle:        {Title: textBlocks(rec.Title)},
		PropDescription:  {RichText: textBlocks(rec.Description)},
		PropURL:          urlValue(rec.URL),
		PropAssignee:     {RichText: textBlocks(rec.Assignee)},
		PropCreatedAt:    {Date: &Date{Start: rec.CreatedAt}},
		PropMilestone:    {RichText: textBlocks(rec.Milestone)},
		PropTimeEstimate: {Number: float(rec.TimeEstimate)},
		PropTimeSpent:    {Number: float(rec.TimeSpent)},
		PropEpicTitle:    {RichText: textBlocks(rec.EpicTitle)},
		PropEstado:       {Select: &Select{Name: rec.Estado}},
		PropPrioridad:    {Select: &Select{Name: rec.Prioridad}},
		PropModulo:       {Select: &Select{Name: rec.Modulo}},
		PropTipo:         {Select: &Select{Name: rec.Tipo}},
	}
	if includeIssueID {
		props[PropIssueID] = PropertyValue{RichText: textBlocks(rec.IssueID)}
	}
	return props
}

// textBlocks splits s into at most MaxTextBlocks text objects no longer than
// MaxTextContent runes each.
// An empty string still yields one empty block so the property is cleared.
func textBlocks(s string) []RichText {
	if utf8.RuneCountInString(s) <= MaxTextContent {
		return []RichText{{Text: TextContent{Content: s}}}
	}

	var blocks []RichText
	runes := []rune(s)
	for start := 0; start < len(runes) && len(blocks) < MaxTextBlocks; start += MaxTextContent {
		end := min(start+MaxTextContent, len(runes))
		blocks = append(blocks, RichText{Text: TextContent{Content: string(runes[start:end])}})
	}
	return blocks
}

func urlValue(u string) PropertyValue {
	return PropertyValue{URL: &u}
}

func float(f float64) *float64 {
	return &f
}
