package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/signalstack/signal-engine/internal/cache"
	"github.com/signalstack/signal-engine/internal/models"
	"github.com/signalstack/signal-engine/internal/utils"
)

// TrackerClient wraps the error-tracking query and status-mutation APIs.
type TrackerClient struct {
	baseURL    string
	searchPath string
	issuePath  string
	eventsPath string
	statusPath string
	authToken  string
	httpClient *http.Client
	cache      cache.Provider
	searchTTL  time.Duration
}

// NewTrackerClient constructs a client for the configured tracker instance.
// Search results are cached through the provider when a TTL is set.
func NewTrackerClient(baseURL, searchPath, issuePath, eventsPath, statusPath, authToken string, timeout time.Duration, cacheProvider cache.Provider, searchTTL time.Duration) *TrackerClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TrackerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		searchPath: searchPath,
		issuePath:  issuePath,
		eventsPath: eventsPath,
		statusPath: statusPath,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		searchTTL:  searchTTL,
	}
}

// SearchIssues queries one project/service for issues matching the query.
func (c *TrackerClient) SearchIssues(ctx context.Context, service, query string) ([]models.CorrelatedIssue, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("tracker:search:%s:%s", service, query)
	if c.searchTTL > 0 {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
			var issues []models.CorrelatedIssue
			if json.Unmarshal(cached, &issues) == nil {
				return issues, nil
			}
		}
	}

	payload := map[string]any{"project": service, "query": query}
	var response struct {
		Issues []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Level    string `json:"level"`
			Count    int    `json:"count"`
			LastSeen string `json:"last_seen"`
			Link     string `json:"permalink"`
		} `json:"issues"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.searchPath), payload, &response); err != nil {
		return nil, fmt.Errorf("tracker search failed: %w", err)
	}

	issues := make([]models.CorrelatedIssue, 0, len(response.Issues))
	for _, raw := range response.Issues {
		lastSeen, err := utils.ParseEventTime(raw.LastSeen)
		if err != nil {
			lastSeen = time.Time{}
		}
		issues = append(issues, models.CorrelatedIssue{
			ID:       raw.ID,
			Service:  service,
			Title:    raw.Title,
			Level:    raw.Level,
			Count:    raw.Count,
			LastSeen: lastSeen,
			Link:     raw.Link,
		})
	}

	if c.searchTTL > 0 {
		if encoded, err := json.Marshal(issues); err == nil {
			_ = c.cache.Set(ctx, cacheKey, encoded, c.searchTTL)
		}
	}
	return issues, nil
}

// FetchIssue retrieves the full error record for one issue.
func (c *TrackerClient) FetchIssue(ctx context.Context, project, issueID string) (models.ErrorRecord, error) {
	if err := c.ready(); err != nil {
		return models.ErrorRecord{}, err
	}
	if issueID == "" {
		return models.ErrorRecord{}, errors.New("issue id is required")
	}

	payload := map[string]any{"project": project, "issue_id": issueID}
	var record models.ErrorRecord
	if err := c.postJSON(ctx, c.resolvePath(c.issuePath), payload, &record); err != nil {
		return models.ErrorRecord{}, fmt.Errorf("tracker issue fetch failed: %w", err)
	}
	if record.Project == "" {
		record.Project = project
	}
	return record, nil
}

// FetchEventTimestamps returns the raw event timestamp series for an issue.
func (c *TrackerClient) FetchEventTimestamps(ctx context.Context, project, issueID string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	payload := map[string]any{"project": project, "issue_id": issueID}
	var response struct {
		Timestamps []string `json:"timestamps"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.eventsPath), payload, &response); err != nil {
		return nil, fmt.Errorf("tracker events fetch failed: %w", err)
	}
	return response.Timestamps, nil
}

// UpdateIssueStatus mutates an issue's resolution state.
func (c *TrackerClient) UpdateIssueStatus(ctx context.Context, project, issueID, status string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if issueID == "" {
		return errors.New("issue id is required")
	}

	payload := map[string]any{"project": project, "issue_id": issueID, "status": status}
	if err := c.postJSON(ctx, c.resolvePath(c.statusPath), payload, nil); err != nil {
		return fmt.Errorf("tracker status update failed: %w", err)
	}
	return nil
}

func (c *TrackerClient) ready() error {
	if c == nil {
		return errors.New("tracker client not initialised")
	}
	if c.baseURL == "" {
		return errors.New("tracker base URL not configured")
	}
	return nil
}

func (c *TrackerClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *TrackerClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return errors.New("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
