package domain

import "encoding/json"

// Identity is an upstream user reference.
type Identity struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName,omitempty"`
}

// RawComment is a work item comment as returned by the tracker.
type RawComment struct {
	ID           int      `json:"id"`
	WorkItemID   int      `json:"workItemId,omitempty"`
	Version      int      `json:"version,omitempty"`
	Text         string   `json:"text"`
	CreatedBy    Identity `json:"createdBy"`
	CreatedDate  string   `json:"createdDate"`
	ModifiedBy   Identity `json:"modifiedBy"`
	ModifiedDate string   `json:"modifiedDate"`
}

// Author returns the comment creator's display name, or "Unknown".
func (c RawComment) Author() string {
	if c.CreatedBy.DisplayName == "" {
		return "Unknown"
	}
	return c.CreatedBy.DisplayName
}

// RawWorkItem is a tracked ticket with its rich text fields and comments.
// The JSON layout matches the exported work item files.
type RawWorkItem struct {
	ID                 int          `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	AcceptanceCriteria string       `json:"acceptance_criteria"`
	Tags               string       `json:"tags"`
	StoryPoints        *float64     `json:"story_points"`
	Type               string       `json:"type"`
	State              string       `json:"state"`
	AssignedTo         string       `json:"assignedTo"`
	CreatedDate        string       `json:"createdDate"`
	ChangedDate        string       `json:"changedDate"`
	AreaPath           string       `json:"areaPath,omitempty"`
	IterationPath      string       `json:"iterationPath,omitempty"`
	Parents            []string     `json:"parents,omitempty"`
	Children           []string     `json:"children,omitempty"`
	CommitLinks        []string     `json:"commit_links,omitempty"`
	OtherRelations     []Relation   `json:"other_relations,omitempty"`
	Comments           []RawComment `json:"comments"`

	// CommitDetails holds the upstream commit object per CommitLinks entry,
	// or {} when it could not be loaded.
	CommitDetails []json.RawMessage `json:"commit_details,omitempty"`
}

// Relation is an unclassified link between a work item and another artifact.
type Relation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
