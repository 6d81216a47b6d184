package devops

import (
	"strings"

	"github.com/cloo-solutions/witsync/internal/domain"
)

const (
	fieldTitle              = "System.Title"
	fieldDescription        = "System.Description"
	fieldAcceptanceCriteria = "Microsoft.VSTS.Common.AcceptanceCriteria"
	fieldTags               = "System.Tags"
	fieldStoryPoints        = "Microsoft.VSTS.Scheduling.StoryPoints"
	fieldType               = "System.WorkItemType"
	fieldState              = "System.State"
	fieldAssignedTo         = "System.AssignedTo"
	fieldCreatedDate        = "System.CreatedDate"
	fieldChangedDate        = "System.ChangedDate"
	fieldAreaPath           = "System.AreaPath"
	fieldIterationPath      = "System.IterationPath"
)

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItemsResponse struct {
	Value []workItem `json:"value"`
}

type workItem struct {
	ID        int               `json:"id"`
	Fields    map[string]any    `json:"fields"`
	Relations []domain.Relation `json:"relations"`
}

type commentsResponse struct {
	Comments          []domain.RawComment `json:"comments"`
	ContinuationToken string              `json:"continuationToken"`
}

func (w workItem) toRaw() domain.RawWorkItem {
	item := domain.RawWorkItem{
		ID:                 w.ID,
		Title:              w.stringField(fieldTitle),
		Description:        w.stringField(fieldDescription),
		AcceptanceCriteria: w.stringField(fieldAcceptanceCriteria),
		Tags:               w.stringField(fieldTags),
		Type:               w.stringField(fieldType),
		State:              w.stringField(fieldState),
		CreatedDate:        w.stringField(fieldCreatedDate),
		ChangedDate:        w.stringField(fieldChangedDate),
		AreaPath:           w.stringField(fieldAreaPath),
		IterationPath:      w.stringField(fieldIterationPath),
		Comments:           []domain.RawComment{},
	}

	if sp, ok := w.Fields[fieldStoryPoints].(float64); ok {
		item.StoryPoints = &sp
	}
	if assigned, ok := w.Fields[fieldAssignedTo].(map[string]any); ok {
		item.AssignedTo, _ = assigned["displayName"].(string)
	}

	item.Parents, item.Children, item.CommitLinks, item.OtherRelations = ClassifyRelations(w.Relations)
	return item
}

func (w workItem) stringField(name string) string {
	s, _ := w.Fields[name].(string)
	return s
}

// ClassifyRelations splits relations into parent, child and commit URLs by
// relation name, falling back to the URL shape for commits. Anything else is
// returned unchanged in other.
func ClassifyRelations(relations []domain.Relation) (parents, children, commits []string, other []domain.Relation) {
	for _, r := range relations {
		name, _ := r.Attributes["name"].(string)
		name = strings.ToLower(name)

		switch {
		case strings.Contains(name, "parent"):
			parents = append(parents, r.URL)
		case strings.Contains(name, "child"):
			children = append(children, r.URL)
		case r.URL != "" && (IsCommitURL(r.URL) || strings.Contains(name, "commit") || strings.Contains(name, "fixed in")):
			commits = append(commits, r.URL)
		default:
			other = append(other, r)
		}
	}
	return parents, children, commits, other
}

// IsCommitURL reports whether u points at a git commit artifact.
func IsCommitURL(u string) bool {
	return strings.Contains(u, "/_apis/git/repositories/") && strings.Contains(u, "/commits/")
}
