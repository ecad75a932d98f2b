// Package notion is a minimal client for the Notion pages and database query
// endpoints used to mirror issues.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/issuemirror/internal/metrics"
	"github.com/telhawk-systems/issuemirror/internal/models"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"
)

// Operation names used in metrics and errors.
const (
	OpQuery  = "query"
	OpCreate = "create"
	OpUpdate = "update"
)

// Config carries everything the client needs; nothing is read from the
// environment here.
type Config struct {
	BaseURL    string
	APIToken   string
	DatabaseID string
	Version    string
	Timeout    time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	token      string
	databaseID string
	version    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.APIToken,
		databaseID: cfg.DatabaseID,
		version:    version,
		httpClient: httpClient,
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Operation  string `json:"-"`
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion %s: status %d: %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion %s: status %d", e.Operation, e.StatusCode)
}

type queryRequest struct {
	Filter   queryFilter `json:"filter"`
	PageSize int         `json:"page_size,omitempty"`
}

type queryFilter struct {
	Property string     `json:"property"`
	RichText textFilter `json:"rich_text"`
}

type textFilter struct {
	Equals string `json:"equals"`
}

type queryResponse struct {
	Results []Page `json:"results"`
}

// Page is the subset of a Notion page object the mirror reads back.
type Page struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	URL    string `json:"url,omitempty"`
}

type createRequest struct {
	Parent     parent     `json:"parent"`
	Properties Properties `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type updateRequest struct {
	Properties Properties `json:"properties"`
}

// FindPage queries the database for a page whose Issue ID equals issueID and
// returns the first match.
func (c *Client) FindPage(ctx context.Context, issueID string) (*Page, bool, error) {
	body := queryRequest{
		Filter: queryFilter{
			Property: PropIssueID,
			RichText: textFilter{Equals: issueID},
		},
		PageSize: 1,
	}

	raw, err := c.do(ctx, OpQuery, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", body)
	if err != nil {
		return nil, false, err
	}

	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("notion %s: decode response: %w", OpQuery, err)
	}
	if len(resp.Results) == 0 {
		return nil, false, nil
	}
	return &resp.Results[0], true, nil
}

// CreatePage creates a page under the configured database carrying every
// property of rec, including the Issue ID used by FindPage.
func (c *Client) CreatePage(ctx context.Context, rec models.NormalizedRecord) (*Page, error) {
	body := createRequest{
		Parent:     parent{DatabaseID: c.databaseID},
		Properties: BuildProperties(rec, true),
	}

	raw, err := c.do(ctx, OpCreate, http.MethodPost, "/v1/pages", body)
	if err != nil {
		return nil, err
	}
	return decodePage(raw, ""), nil
}

// UpdatePage overwrites the mirrored properties of an existing page. The
// Issue ID property is left untouched.
func (c *Client) UpdatePage(ctx context.Context, pageID string, rec models.NormalizedRecord) (*Page, error) {
	body := updateRequest{Properties: BuildProperties(rec, false)}

	raw, err := c.do(ctx, OpUpdate, http.MethodPatch, "/v1/pages/"+pageID, body)
	if err != nil {
		return nil, err
	}
	return decodePage(raw, pageID), nil
}

// decodePage reads the page object echoed by create and update. The status
// code alone decides success, so an unreadable body yields a page carrying
// only fallbackID.
func decodePage(raw []byte, fallbackID string) *Page {
	var page Page
	_ = json.Unmarshal(raw, &page)
	if page.ID == "" {
		page.ID = fallbackID
	}
	return &page
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.NotionRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("notion %s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("notion %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion %s: send request: %w", op, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return nil, apiErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("notion %s: read response: %w", op, err)
	}
	return raw, nil
}
