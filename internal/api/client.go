package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is where the call-summary service listens in development.
const DefaultBaseURL = "http://localhost:5005/api/v1"

// DefaultLimit is the number of summaries fetched when no limit is given.
const DefaultLimit = 20

const defaultTimeout = 15 * time.Second

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// RequestIDHeader carries the client-generated id of each request.
const RequestIDHeader = "X-Request-ID"

// Service is the subset of the API the dashboard consumes.
type Service interface {
	ListSummaries(ctx context.Context, limit int) ([]Summary, error)
	CreateSummary(ctx context.Context, transcript string) (Summary, error)
	RerunSummary(ctx context.Context, id int64) (Summary, error)
	Commlog(ctx context.Context, summaryID int64) ([]CommlogEntry, error)
}

// Client talks to the call-summary service over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     logrus.FieldLogger
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListSummaries fetches up to limit summaries. The order is whatever the
// server sends.
func (c *Client) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []Summary
	err := c.do(ctx, call{
		op:       "list summaries",
		method:   http.MethodGet,
		path:     "/summaries/",
		query:    q,
		fallback: "HTTP error! status: %d",
	}, &out)
	return out, err
}

// GetSummary fetches one summary by id.
func (c *Client) GetSummary(ctx context.Context, id int64) (Summary, error) {
	var out Summary
	err := c.do(ctx, call{
		op:       "get summary",
		method:   http.MethodGet,
		path:     fmt.Sprintf("/summaries/%d", id),
		fallback: "HTTP error! status: %d",
	}, &out)
	return out, err
}

// CreateSummary submits a transcript. The returned summary usually has no
// summary text yet.
func (c *Client) CreateSummary(ctx context.Context, transcript string) (Summary, error) {
	var out Summary
	err := c.do(ctx, call{
		op:       "create summary",
		method:   http.MethodPost,
		path:     "/summaries",
		body:     CreateRequest{Transcript: transcript},
		fallback: "HTTP error! status: %d",
	}, &out)
	return out, err
}

// RerunSummary asks the server to regenerate the summary text for id.
func (c *Client) RerunSummary(ctx context.Context, id int64) (Summary, error) {
	var out Summary
	err := c.do(ctx, call{
		op:       "rerun summary",
		method:   http.MethodPost,
		path:     fmt.Sprintf("/summaries/%d/rerun", id),
		fallback: "Failed to re-run summary (status: %d)",
	}, &out)
	return out, err
}

// Commlog fetches the log entries of one summary, newest first.
func (c *Client) Commlog(ctx context.Context, summaryID int64) ([]CommlogEntry, error) {
	var out []CommlogEntry
	err := c.do(ctx, call{
		op:       "fetch commlog",
		method:   http.MethodGet,
		path:     fmt.Sprintf("/commlog/%d/", summaryID),
		fallback: "HTTP error! status: %d",
	}, &out)
	return out, err
}

// AllCommlog fetches log entries across every summary.
func (c *Client) AllCommlog(ctx context.Context, skip, limit int) ([]CommlogEntry, error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []CommlogEntry
	err := c.do(ctx, call{
		op:       "fetch commlog",
		method:   http.MethodGet,
		path:     "/commlog/",
		query:    q,
		fallback: "HTTP error! status: %d",
	}, &out)
	return out, err
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	fallback string // format with one %d for the status code
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return &Error{Kind: KindTransport, Op: cl.op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl.path, cl.query), body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: cl.op, Err: fmt.Errorf("build request: %w", err)}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{
		"op":         cl.op,
		"method":     cl.method,
		"path":       cl.path,
		"request_id": reqID,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return &Error{Kind: KindTransport, Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.WithError(err).Warn("read response failed")
		return &Error{Kind: KindTransport, Op: cl.op, Err: fmt.Errorf("read response: %w", err)}
	}

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Kind:     KindHTTP,
			Op:       cl.op,
			Status:   resp.StatusCode,
			Detail:   parseDetail(data),
			Fallback: fmt.Sprintf(cl.fallback, resp.StatusCode),
		}
		log.WithField("detail", apiErr.Detail).Warn("request rejected")
		return apiErr
	}
	log.Debug("request ok")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Op: cl.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
