package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when no API URL is supplied.
const DefaultBaseURL = "http://localhost:3000/api"

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 8192
)

// Client provides typed access to the temps control plane API. Resource
// groups hang off it as namespaces, e.g. c.Deployments.Get.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger

	Users        *UsersService
	Projects     *ProjectsService
	Environments *EnvironmentsService
	EnvVars      *EnvVarsService
	Deployments  *DeploymentsService
	Services     *ServicesService
	Domains      *DomainsService
	Email        *EmailService
	Backups      *BackupsService
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client is copied,
// so later options never mutate the caller's value.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			cp := *h
			c.httpClient = &cp
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout overrides the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger attaches a logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		userAgent:  "temps-cli",
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	cli.Users = &UsersService{client: cli}
	cli.Projects = &ProjectsService{client: cli}
	cli.Environments = &EnvironmentsService{client: cli}
	cli.EnvVars = &EnvVarsService{client: cli}
	cli.Deployments = &DeploymentsService{client: cli}
	cli.Services = &ServicesService{client: cli}
	cli.Domains = &DomainsService{client: cli}
	cli.Email = &EmailService{client: cli}
	cli.Backups = &BackupsService{client: cli}
	return cli, nil
}

// BaseURL returns the normalised API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// ErrNotFound matches any APIError with status 404 via errors.Is.
var ErrNotFound = errors.New("not found")

func (e APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, fmt.Errorf("perform request: %w", err)
	}
	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doText(ctx context.Context, method, path string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	req, err := c.newRequest(ctx, method, path, nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

// extractError pulls a human readable message from an error body. The API
// answers with problem details ({"title","detail"}) or {"error": "..."}.
func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Title   string `json:"title"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch {
	case payload.Detail != "" && payload.Title != "":
		return payload.Title + ": " + payload.Detail
	case payload.Detail != "":
		return payload.Detail
	case payload.Error != "":
		return strings.TrimSpace(payload.Error)
	case payload.Message != "":
		return payload.Message
	case payload.Title != "":
		return payload.Title
	}
	return strings.TrimSpace(string(data))
}

func pathf(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			escaped[i] = url.PathEscape(v)
		default:
			escaped[i] = v
		}
	}
	return fmt.Sprintf(format, escaped...)
}

// Page selects a page of a paginated listing. Zero values use server defaults.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", fmt.Sprint(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", fmt.Sprint(p.PerPage))
	}
	return q
}

// Millis is a unix timestamp in milliseconds as emitted by the API.
type Millis int64

// Time converts m to a UTC time. Zero stays the zero time.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}

func (m Millis) String() string {
	if m == 0 {
		return "-"
	}
	return m.Time().Format(time.RFC3339)
}
