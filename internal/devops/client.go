// Package devops reads work items and comments from the Azure DevOps REST API.
package devops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/witsync/internal/domain"
)

const (
	DefaultBaseURL = "https://dev.azure.com"

	apiVersion         = "7.0"
	commentsAPIVersion = "7.1-preview.4"
	commentsPageSize   = 100

	// MaxIDsPerBatch is the work item batch size accepted by the API.
	MaxIDsPerBatch = 200
)

type Config struct {
	BaseURL    string
	Org        string
	Project    string
	PAT        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var emptyObject = json.RawMessage(`{}`)

// Client implements service.ItemSource against one project.
type Client struct {
	baseURL    string
	apiBase    string
	project    string
	pat        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.PAT == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("devops personal access token"))
	}
	if cfg.Org == "" || cfg.Project == "" {
		return nil, domain.ErrMissingRequiredField.Wrap(fmt.Errorf("devops organization and project"))
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiBase:    fmt.Sprintf("%s/%s/%s/_apis", baseURL, url.PathEscape(cfg.Org), url.PathEscape(cfg.Project)),
		project:    cfg.Project,
		pat:        cfg.PAT,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchChangedSince returns every work item of the project changed at or
// after since, without comments.
func (c *Client) FetchChangedSince(ctx context.Context, since time.Time) ([]domain.RawWorkItem, error) {
	ids, err := c.queryChangedIDs(ctx, since)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "work items changed", "since", domain.FormatISO(since), "count", len(ids))
	if len(ids) == 0 {
		return []domain.RawWorkItem{}, nil
	}
	return c.GetWorkItems(ctx, ids)
}

// GetWorkItems loads work items with their relations in batches of
// MaxIDsPerBatch.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]domain.RawWorkItem, error) {
	items := make([]domain.RawWorkItem, 0, len(ids))
	for start := 0; start < len(ids); start += MaxIDsPerBatch {
		end := min(start+MaxIDsPerBatch, len(ids))

		idList := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			idList = append(idList, strconv.Itoa(id))
		}

		params := url.Values{}
		params.Set("ids", strings.Join(idList, ","))
		params.Set("$expand", "relations")
		params.Set("api-version", apiVersion)

		var resp workItemsResponse
		if err := c.do(ctx, http.MethodGet, "/wit/workitems?"+params.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		for _, wi := range resp.Value {
			items = append(items, wi.toRaw())
		}
	}
	return items, nil
}

// FetchComments pages through every comment of a work item.
func (c *Client) FetchComments(ctx context.Context, workItemID int) ([]domain.RawComment, error) {
	params := url.Values{}
	params.Set("api-version", commentsAPIVersion)
	params.Set("$top", strconv.Itoa(commentsPageSize))

	comments := []domain.RawComment{}
	for {
		var page commentsResponse
		path := fmt.Sprintf("/wit/workItems/%d/comments?%s", workItemID, params.Encode())
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		comments = append(comments, page.Comments...)

		if page.ContinuationToken == "" {
			return comments, nil
		}
		params.Set("continuationToken", page.ContinuationToken)
	}
}

// FetchCommitDetails fills item.CommitDetails with the git commit behind each
// commit link, index-aligned with CommitLinks. Links that are not commit API
// URLs of this service, or that fail to load, get an empty object; only a
// canceled context aborts.
func (c *Client) FetchCommitDetails(ctx context.Context, item *domain.RawWorkItem) error {
	details := make([]json.RawMessage, len(item.CommitLinks))
	for i, link := range item.CommitLinks {
		details[i] = emptyObject
		if !IsCommitURL(link) || !strings.HasPrefix(link, c.baseURL+"/") {
			continue
		}

		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		q := u.Query()
		q.Set("api-version", apiVersion)
		u.RawQuery = q.Encode()

		var commit json.RawMessage
		if err := c.doURL(ctx, http.MethodGet, u.String(), nil, &commit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WarnContext(ctx, "commit details unavailable", "work_item_id", item.ID, "url", link, "error", err)
			continue
		}
		details[i] = commit
	}
	item.CommitDetails = details
	return nil
}

func (c *Client) queryChangedIDs(ctx context.Context, since time.Time) ([]int, error) {
	query := fmt.Sprintf(
		"SELECT [System.Id], [System.Title], [System.ChangedDate] FROM WorkItems "+
			"WHERE [System.TeamProject] = '%s' AND [System.ChangedDate] >= '%s' "+
			"ORDER BY [System.ChangedDate] DESC",
		escapeWIQL(c.project), domain.FormatISO(since),
	)

	params := url.Values{}
	params.Set("api-version", apiVersion)
	params.Set("timePrecision", "true")

	var resp wiqlResponse
	if err := c.do(ctx, http.MethodPost, "/wit/wiql?"+params.Encode(), wiqlRequest{Query: query}, &resp); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.WorkItems))
	for _, ref := range resp.WorkItems {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.apiBase+path, body, out)
}

func (c *Client) doURL(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("", c.pat)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrUpstreamUnavailable.Wrap(fmt.Errorf("%s %s: %w", method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ErrUpstreamUnavailable.Wrap(
			fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg))),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", req.URL.Path, err)
	}
	return nil
}

func escapeWIQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
