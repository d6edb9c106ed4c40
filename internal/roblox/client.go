package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yegors/rbx-watch/internal/metrics"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// BatchSize is the maximum number of user IDs per presence/username request
const BatchSize = 100

const userAgent = "rbx-watch/1.0"

// Client is responsible for fetching presence, username and friends data
// from the Roblox web APIs
type Client struct {
	httpClient  *http.Client
	presenceURL string
	usersURL    string
	friendsURL  string
	cookie      string
	nameCache   *lru.Cache[int64, string]
	logger      *logger.Logger
}

// NewClient creates a new Roblox API client
func NewClient(
	presenceURL string,
	usersURL string,
	friendsURL string,
	cookie string,
	usernameCacheSize int,
	timeout time.Duration,
	loggerObj *logger.Logger,
) (*Client, error) {
	cache, err := lru.New[int64, string](usernameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create username cache: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		presenceURL: presenceURL,
		usersURL:    usersURL,
		friendsURL:  friendsURL,
		cookie:      cookie,
		nameCache:   cache,
		logger:      loggerObj.Named("roblox-cli"),
	}, nil
}

// chunk splits ids into contiguous slices of at most size elements,
// preserving order
func chunk(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Presences fetches presence records for the given user IDs, issuing one
// request per batch of at most BatchSize IDs. A failed batch is logged and
// skipped; the remaining batches still contribute to the result. There is
// no per-batch retry - the next poll retries naturally.
func (c *Client) Presences(ctx context.Context, ids []int64) ([]UserPresence, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	reqURL := c.presenceURL + "/v1/presence/users"
	results := make([]UserPresence, 0, len(ids))

	for _, batch := range chunk(ids, BatchSize) {
		var parsed presenceResponse
		if err := c.postJSON(ctx, reqURL, map[string]interface{}{"userIds": batch}, &parsed); err != nil {
			metrics.UpstreamRequests.WithLabelValues("presence", "error").Inc()
			c.logger.Warn("Presence batch failed, skipping",
				logger.Int("batch_size", len(batch)),
				logger.Error(err),
			)
			continue
		}
		metrics.UpstreamRequests.WithLabelValues("presence", "ok").Inc()
		results = append(results, parsed.UserPresences...)
	}

	return results, nil
}

// Usernames resolves user IDs to usernames, serving known IDs from the
// cache and batch-fetching the rest from the users API. Failed batches are
// skipped; their IDs are simply absent from the returned map.
func (c *Client) Usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	missing := make([]int64, 0, len(ids))

	for _, id := range ids {
		if name, ok := c.nameCache.Get(id); ok {
			metrics.UsernameCacheHits.Inc()
			names[id] = name
			continue
		}
		metrics.UsernameCacheMisses.Inc()
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return names, nil
	}

	reqURL := c.usersURL + "/v1/users"

	for _, batch := range chunk(missing, BatchSize) {
		var parsed usersResponse
		payload := map[string]interface{}{
			"userIds":            batch,
			"excludeBannedUsers": true,
		}
		if err := c.postJSON(ctx, reqURL, payload, &parsed); err != nil {
			metrics.UpstreamRequests.WithLabelValues("users", "error").Inc()
			c.logger.Warn("Username batch failed, skipping",
				logger.Int("batch_size", len(batch)),
				logger.Error(err),
			)
			continue
		}
		metrics.UpstreamRequests.WithLabelValues("users", "ok").Inc()

		for _, u := range parsed.Data {
			name := u.Name
			if name == "" {
				name = u.DisplayName
			}
			if name == "" {
				name = strconv.FormatInt(u.ID, 10)
			}
			names[u.ID] = name
			c.nameCache.Add(u.ID, name)
		}
	}

	return names, nil
}

// FriendIDs fetches the authenticated account's full friends list,
// following the page cursor until the listing is exhausted
func (c *Client) FriendIDs(ctx context.Context) ([]int64, error) {
	var friends []int64
	cursor := ""

	for {
		page, err := c.fetchFriendsPage(ctx, cursor)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues("friends", "error").Inc()
			return nil, err
		}
		metrics.UpstreamRequests.WithLabelValues("friends", "ok").Inc()

		for _, f := range page.Data {
			friends = append(friends, f.ID)
		}

		if page.NextPageCursor == nil || *page.NextPageCursor == "" {
			break
		}
		cursor = *page.NextPageCursor
	}

	return friends, nil
}

// fetchFriendsPage fetches a single page of the friends listing
func (c *Client) fetchFriendsPage(ctx context.Context, cursor string) (*friendsPage, error) {
	reqURL := c.friendsURL + "/v1/my/friends?limit=100"
	if cursor != "" {
		reqURL += "&cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var page friendsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to parse friends page: %w", err)
	}

	return &page, nil
}

// postJSON sends an authenticated JSON POST and decodes the response into target
func (c *Client) postJSON(ctx context.Context, reqURL string, payload interface{}, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cookie", ".ROBLOSECURITY="+c.cookie)
}
