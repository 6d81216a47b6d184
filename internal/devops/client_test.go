package devops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.ItemSource = (*Client)(nil)

type fakeDevOps struct {
	t          *testing.T
	mu         sync.Mutex
	wiqlIDs    []int
	batchSizes []int
	wiqlQuery  string
	comments   map[string]commentsResponse
	failPaths  map[string]int
}

func (f *fakeDevOps) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /org/proj/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		_, pat, ok := r.BasicAuth()
		if !ok || pat != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(f.t, "true", r.URL.Query().Get("timePrecision"))

		var req wiqlRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.wiqlQuery = req.Query
		f.mu.Unlock()

		refs := make([]map[string]int, 0, len(f.wiqlIDs))
		for _, id := range f.wiqlIDs {
			refs = append(refs, map[string]int{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"workItems": refs})
	})

	mux.HandleFunc("GET /org/proj/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "relations", r.URL.Query().Get("$expand"))
		ids := strings.Split(r.URL.Query().Get("ids"), ",")

		f.mu.Lock()
		f.batchSizes = append(f.batchSizes, len(ids))
		f.mu.Unlock()

		values := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			values = append(values, map[string]any{
				"id": json.Number(id),
				"fields": map[string]any{
					"System.Title":       "Item " + id,
					"System.ChangedDate": "2025-01-28T20:08:00Z",
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": values})
	})

	mux.HandleFunc("GET /org/proj/_apis/wit/workItems/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		if status, ok := f.failPaths[r.PathValue("id")]; ok {
			http.Error(w, "boom", status)
			return
		}
		assert.Equal(f.t, "7.1-preview.4", r.URL.Query().Get("api-version"))
		assert.Equal(f.t, "100", r.URL.Query().Get("$top"))

		key := r.PathValue("id") + ":" + r.URL.Query().Get("continuationToken")
		_ = json.NewEncoder(w).Encode(f.comments[key])
	})

	mux.HandleFunc("GET /org/proj/_apis/git/repositories/{repo}/commits/{sha}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, apiVersion, r.URL.Query().Get("api-version"))
		if r.PathValue("sha") == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"commitId": r.PathValue("sha"), "comment": "Fix export"})
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeDevOps) *Client {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL + "/", Org: "org", Project: "proj", PAT: "secret"})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Org: "o", Project: "p"})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	_, err = NewClient(Config{PAT: "x"})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	c, err := NewClient(Config{Org: "my org", Project: "p", PAT: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/my%20org/p/_apis", c.apiBase)
}

func TestClient_FetchChangedSince_Batches(t *testing.T) {
	f := &fakeDevOps{}
	for i := 1; i <= 450; i++ {
		f.wiqlIDs = append(f.wiqlIDs, i)
	}
	client := newTestClient(t, f)

	since := time.Date(2025, time.January, 25, 20, 8, 0, 0, time.UTC)
	items, err := client.FetchChangedSince(context.Background(), since)
	require.NoError(t, err)

	assert.Len(t, items, 450)
	assert.Equal(t, []int{200, 200, 50}, f.batchSizes)
	assert.Equal(t, "Item 1", items[0].Title)
	assert.Equal(t, 450, items[449].ID)
	assert.Contains(t, f.wiqlQuery, "[System.TeamProject] = 'proj'")
	assert.Contains(t, f.wiqlQuery, "[System.ChangedDate] >= '2025-01-25T20:08:00Z'")
}

func TestClient_FetchChangedSince_Empty(t *testing.T) {
	f := &fakeDevOps{}
	client := newTestClient(t, f)

	items, err := client.FetchChangedSince(context.Background(), domain.EpochSentinel)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.batchSizes)
}

func TestClient_FetchComments_Pages(t *testing.T) {
	f := &fakeDevOps{
		comments: map[string]commentsResponse{
			"7:": {
				Comments:          []domain.RawComment{{ID: 1, Text: "first", CreatedDate: "2025-01-01T00:00:00Z"}},
				ContinuationToken: "page2",
			},
			"7:page2": {
				Comments: []domain.RawComment{{ID: 2, Text: "second", CreatedBy: domain.Identity{DisplayName: "Amy Crossan"}}},
			},
		},
	}
	client := newTestClient(t, f)

	comments, err := client.FetchComments(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "Amy Crossan", comments[1].Author())
}

func TestClient_FetchComments_NoComments(t *testing.T) {
	client := newTestClient(t, &fakeDevOps{})

	comments, err := client.FetchComments(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestClient_UpstreamErrors(t *testing.T) {
	f := &fakeDevOps{failPaths: map[string]int{"9": http.StatusInternalServerError}}
	client := newTestClient(t, f)

	_, err := client.FetchComments(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 500")

	client.pat = "wrong"
	_, err = client.FetchChangedSince(context.Background(), domain.EpochSentinel)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_FetchCommitDetails(t *testing.T) {
	client := newTestClient(t, &fakeDevOps{})
	repo := client.baseURL + "/org/proj/_apis/git/repositories/r1/commits/"

	item := domain.RawWorkItem{
		ID: 7,
		CommitLinks: []string{
			repo + "abc123",
			repo + "missing",
			"vstfs:///Git/Commit/p%2Fr%2Fabc",
			"https://elsewhere.example/_apis/git/repositories/r1/commits/abc123",
		},
	}

	require.NoError(t, client.FetchCommitDetails(context.Background(), &item))
	require.Len(t, item.CommitDetails, 4)

	var commit map[string]string
	require.NoError(t, json.Unmarshal(item.CommitDetails[0], &commit))
	assert.Equal(t, "abc123", commit["commitId"])
	for _, d := range item.CommitDetails[1:] {
		assert.JSONEq(t, `{}`, string(d))
	}
}

func TestClient_FetchCommitDetails_Canceled(t *testing.T) {
	client := newTestClient(t, &fakeDevOps{})
	item := domain.RawWorkItem{CommitLinks: []string{client.baseURL + "/org/proj/_apis/git/repositories/r1/commits/abc"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, client.FetchCommitDetails(ctx, &item), context.Canceled)
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, &fakeDevOps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchComments(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkItem_ToRaw(t *testing.T) {
	payload := `{
		"id": 42,
		"fields": {
			"System.Title": "Login fails",
			"System.Description": "<p>Steps</p>",
			"Microsoft.VSTS.Common.AcceptanceCriteria": "<ul><li>works</li></ul>",
			"System.Tags": "auth; ui",
			"Microsoft.VSTS.Scheduling.StoryPoints": 3,
			"System.WorkItemType": "Bug",
			"System.State": "Active",
			"System.AssignedTo": {"displayName": "Min Wang", "uniqueName": "min@example.com"},
			"System.CreatedDate": "2025-01-01T00:00:00Z",
			"System.ChangedDate": "2025-01-02T00:00:00Z",
			"System.AreaPath": "Proj\\Web",
			"System.IterationPath": "Proj\\Sprint 1"
		},
		"relations": [
			{"rel": "System.LinkTypes.Hierarchy-Reverse", "url": "https://x/_apis/wit/workItems/1", "attributes": {"name": "Parent"}},
			{"rel": "ArtifactLink", "url": "https://x/_apis/git/repositories/r/commits/abc", "attributes": {"name": "Fixed in Commit"}}
		]
	}`

	var wi workItem
	require.NoError(t, json.Unmarshal([]byte(payload), &wi))
	item := wi.toRaw()

	assert.Equal(t, 42, item.ID)
	assert.Equal(t, "Login fails", item.Title)
	assert.Equal(t, "Bug", item.Type)
	assert.Equal(t, "Min Wang", item.AssignedTo)
	require.NotNil(t, item.StoryPoints)
	assert.Equal(t, 3.0, *item.StoryPoints)
	assert.Equal(t, `Proj\Sprint 1`, item.IterationPath)
	assert.Equal(t, []string{"https://x/_apis/wit/workItems/1"}, item.Parents)
	assert.Equal(t, []string{"https://x/_apis/git/repositories/r/commits/abc"}, item.CommitLinks)
	assert.Empty(t, item.Children)
	assert.NotNil(t, item.Comments)
}

func TestWorkItem_ToRaw_MissingFields(t *testing.T) {
	item := workItem{ID: 1, Fields: map[string]any{"System.AssignedTo": nil}}.toRaw()

	assert.Nil(t, item.StoryPoints)
	assert.Empty(t, item.AssignedTo)
	assert.Empty(t, item.Title)
}

func TestClassifyRelations(t *testing.T) {
	relations := []domain.Relation{
		{URL: "p", Attributes: map[string]any{"name": "Parent"}},
		{URL: "c1", Attributes: map[string]any{"name": "Child"}},
		{URL: "https://dev/_apis/git/repositories/r/commits/1"},
		{URL: "b", Attributes: map[string]any{"name": "Build"}},
		{URL: "f", Attributes: map[string]any{"name": "Fixed in Changeset"}},
		{URL: "", Attributes: map[string]any{"name": "Commit"}},
	}

	parents, children, commits, other := ClassifyRelations(relations)

	assert.Equal(t, []string{"p"}, parents)
	assert.Equal(t, []string{"c1"}, children)
	assert.Equal(t, []string{"https://dev/_apis/git/repositories/r/commits/1", "f"}, commits)
	require.Len(t, other, 2)
	assert.Equal(t, "b", other[0].URL)
	assert.Equal(t, "", other[1].URL)
}

func TestIsCommitURL(t *testing.T) {
	for _, tt := range []struct {
		url  string
		want bool
	}{
		{"https://dev.azure.com/o/p/_apis/git/repositories/abc/commits/123", true},
		{"https://dev.azure.com/o/p/_apis/git/repositories/abc", false},
		{"https://dev.azure.com/o/p/_apis/wit/workItems/1", false},
	} {
		t.Run(fmt.Sprint(tt.want, "_", tt.url), func(t *testing.T) {
			assert.Equal(t, tt.want, IsCommitURL(tt.url))
		})
	}
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Org: "o", Project: "p", PAT: "x"})
	require.NoError(t, err)

	_, err = client.FetchComments(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}
