// Package airtable is a hosted-table record store backend over the Airtable REST API
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/retry"
)

const (
	DefaultBaseURL = "https://api.airtable.com/v0"
	pageSize       = 100
)

// Field names used in the tables
const (
	FieldName         = "Name"
	FieldURL          = "URL"
	FieldGroup        = "Group"
	FieldPriority     = "Priority"
	FieldStatus       = "Status"
	FieldPostURL      = "Post URL"
	FieldContent      = "Content"
	FieldPublishedAt  = "Published At"
	FieldApproximate  = "Approximate Time"
	FieldLikes        = "Likes"
	FieldComments     = "Comments"
	FieldHasMedia     = "Has Media"
	FieldMediaURL     = "Media URL"
	FieldAuthor       = "Author"
	FieldAuthorURL    = "Author URL"
	FieldRunID        = "Run ID"
	FieldStartedAt    = "Started At"
	FieldPostsNew     = "New Posts"
	FieldRunSummary   = "Summary"
	FieldCrawledAtKey = "Crawled At"
)

// Config holds the connection settings
type Config struct {
	APIKey       string
	BaseID       string
	BaseURL      string
	SourcesTable string
	PostsTable   string
	RunsTable    string

	// MaxAttempts and RetryDelay govern retries on 429 and 5xx responses
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// Client talks to one Airtable base
type Client struct {
	cfg    Config
	http   *resty.Client
	logger logger.Logger
}

type record struct {
	ID          string                 `json:"id,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
	CreatedTime string                 `json:"createdTime,omitempty"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

type createRequest struct {
	Records  []record `json:"records"`
	Typecast bool     `json:"typecast"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-2xx answer from the API
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("airtable: status %d: %s", e.Status, e.Message)
}

func (e *statusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// decodeError is a 2xx answer whose body is not the expected JSON
type decodeError struct {
	Status int
	Err    error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("airtable: status %d: undecodable response: %v", e.Status, e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }

// New creates a client
func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" {
		return nil, errors.New("airtable: API key and base ID are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SourcesTable == "" {
		cfg.SourcesTable = "Sources"
	}
	if cfg.PostsTable == "" {
		cfg.PostsTable = "Posts"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"+cfg.BaseID).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{cfg: cfg, http: client, logger: log.WithField("backend", "airtable")}, nil
}

// Close is a no-op
func (c *Client) Close() error { return nil }

// do runs one request with retries on rate limiting and server errors
func (c *Client) do(ctx context.Context, method, table string, query map[string]string, body interface{}, out interface{}) error {
	return retry.Do(func(attempt int) error {
		req := c.http.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParams(query)
		}
		if body != nil {
			req.SetBody(body)
		}

		res, err := req.Execute(method, "/"+table)
		if err != nil {
			return err
		}
		if res.IsError() {
			var apiErr apiError
			msg := strings.TrimSpace(string(res.Body()))
			if json.Unmarshal(res.Body(), &apiErr) == nil && apiErr.Error.Message != "" {
				msg = apiErr.Error.Type + ": " + apiErr.Error.Message
			}
			return &statusError{Status: res.StatusCode(), Message: msg}
		}
		// decoded by hand so an unexpected 2xx body fails instead of
		// reading as an empty record list
		if out != nil {
			if err := json.Unmarshal(res.Body(), out); err != nil {
				return &decodeError{Status: res.StatusCode(), Err: err}
			}
		}
		return nil
	}, &retry.Config{
		MaxAttempts: c.cfg.MaxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: c.cfg.RetryDelay},
		RetryIf: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.retryable()
			}
			var de *decodeError
			if errors.As(err, &de) {
				return false
			}
			return retry.DefaultRetryIf(err)
		},
		Context: ctx,
		Logger:  c.logger,
	})
}

// list pages through a table
func (c *Client) list(ctx context.Context, table string, query map[string]string, limit int) ([]record, error) {
	var all []record
	offset := ""
	for {
		q := map[string]string{"pageSize": strconv.Itoa(pageSize)}
		for k, v := range query {
			q[k] = v
		}
		if offset != "" {
			q["offset"] = offset
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, table, q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" || (limit > 0 && len(all) >= limit) {
			break
		}
		offset = page.Offset
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (c *Client) create(ctx context.Context, table string, fields map[string]interface{}) (string, error) {
	var out listResponse
	err := c.do(ctx, http.MethodPost, table, nil, createRequest{
		Records:  []record{{Fields: fields}},
		Typecast: true,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Records) == 0 {
		return "", nil
	}
	return out.Records[0].ID, nil
}

// formulaString quotes s for use inside a filterByFormula expression
func formulaString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// ActiveSources returns Active sources ordered by priority
func (c *Client) ActiveSources(ctx context.Context) ([]models.Source, error) {
	records, err := c.list(ctx, c.cfg.SourcesTable, map[string]string{
		"filterByFormula":    fmt.Sprintf("{%s} = %s", FieldStatus, formulaString(string(models.SourceActive))),
		"sort[0][field]":     FieldPriority,
		"sort[0][direction]": "asc",
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("storage: list sources: %w", err)
	}

	out := make([]models.Source, 0, len(records))
	for _, r := range records {
		src := models.Source{
			ID:          r.ID,
			DisplayName: stringField(r.Fields, FieldName),
			TargetURL:   stringField(r.Fields, FieldURL),
			Group:       stringField(r.Fields, FieldGroup),
			Priority:    intField(r.Fields, FieldPriority),
			Status:      models.SourceStatus(stringField(r.Fields, FieldStatus)),
		}
		if src.TargetURL == "" {
			c.logger.WarnWithFields("Source without URL ignored", map[string]interface{}{"record": r.ID})
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

// AddSource creates a source record
func (c *Client) AddSource(ctx context.Context, src models.Source) (models.Source, error) {
	if src.Status == "" {
		src.Status = models.SourceActive
	}
	id, err := c.create(ctx, c.cfg.SourcesTable, map[string]interface{}{
		FieldName:     src.DisplayName,
		FieldURL:      src.TargetURL,
		FieldGroup:    src.Group,
		FieldPriority: src.Priority,
		FieldStatus:   string(src.Status),
	})
	if err != nil {
		return src, fmt.Errorf("storage: create source: %w", err)
	}
	src.ID = id
	return src, nil
}

// ExistsByURL reports whether a post record has exactly this canonical URL
func (c *Client) ExistsByURL(ctx context.Context, canonicalURL string) (bool, error) {
	records, err := c.list(ctx, c.cfg.PostsTable, map[string]string{
		"filterByFormula": fmt.Sprintf("{%s} = %s", FieldPostURL, formulaString(canonicalURL)),
		"maxRecords":      "1",
		"fields[]":        FieldPostURL,
	}, 1)
	if err != nil {
		return false, fmt.Errorf("storage: lookup post: %w", err)
	}
	return len(records) > 0, nil
}

// Create writes a post record
func (c *Client) Create(ctx context.Context, p models.StoredPost) error {
	fields := map[string]interface{}{
		FieldPostURL:      p.CanonicalURL,
		FieldContent:      p.Content,
		FieldPublishedAt:  p.PublishedAt.UTC().Format(time.RFC3339),
		FieldApproximate:  p.TimestampApproximate,
		FieldLikes:        p.LikeCount,
		FieldComments:     p.CommentCount,
		FieldHasMedia:     p.HasMedia,
		FieldAuthor:       p.AuthorName,
		FieldAuthorURL:    p.AuthorSourceURL,
		FieldGroup:        p.Group,
		FieldStatus:       p.Status,
		FieldCrawledAtKey: p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.MediaURL != "" {
		fields[FieldMediaURL] = p.MediaURL
	}
	if _, err := c.create(ctx, c.cfg.PostsTable, fields); err != nil {
		return fmt.Errorf("storage: create post: %w", err)
	}
	return nil
}

// AppendRun writes a run record; without a runs table it is a no-op
func (c *Client) AppendRun(ctx context.Context, run *models.RunSummary) error {
	if c.cfg.RunsTable == "" {
		return nil
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: marshal run: %w", err)
	}
	_, err = c.create(ctx, c.cfg.RunsTable, map[string]interface{}{
		FieldRunID:      run.RunID,
		FieldStartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		FieldPostsNew:   run.PostsNewTotal,
		FieldRunSummary: string(data),
	})
	if err != nil {
		return fmt.Errorf("storage: create run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if c.cfg.RunsTable == "" {
		return nil, nil
	}
	query := map[string]string{
		"sort[0][field]":     FieldStartedAt,
		"sort[0][direction]": "desc",
	}
	if limit > 0 {
		query["maxRecords"] = strconv.Itoa(limit)
	}
	records, err := c.list(ctx, c.cfg.RunsTable, query, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}

	out := make([]models.RunSummary, 0, len(records))
	for _, r := range records {
		var run models.RunSummary
		if err := json.Unmarshal([]byte(stringField(r.Fields, FieldRunSummary)), &run); err != nil {
			c.logger.WithError(err).WarnWithFields("Unreadable run record", map[string]interface{}{"record": r.ID})
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
