package errortracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 5 * time.Second
	maxErrorBodySize = 4096
	clientName       = "temps-cli"
	clientVersion    = "1.0.0"
)

// ErrUnauthorized indicates the ingest endpoint rejected the DSN key.
var ErrUnauthorized = errors.New("error tracking unauthorized")

// ErrInvalidArgument indicates the ingest endpoint rejected the payload.
var ErrInvalidArgument = errors.New("error tracking invalid argument")

// ErrNotFound indicates the DSN project does not exist.
var ErrNotFound = errors.New("error tracking project not found")

// ErrRateLimited indicates the ingest endpoint is shedding events.
var ErrRateLimited = errors.New("error tracking rate limited")

// Transport ships events to a Sentry-compatible ingest endpoint.
type Transport struct {
	dsn      DSN
	client   *http.Client
	timeout  time.Duration
	defaults Event
	now      func() time.Time
	newID    func() string
}

// Option customises a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(t *Transport) {
		if h != nil {
			t.client = h
		}
	}
}

// WithTimeout sets how long a single send may take before it is aborted.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithDefaults sets environment, release and server name applied to events
// that leave them empty.
func WithDefaults(environment, release, serverName string) Option {
	return func(t *Transport) {
		t.defaults = Event{Environment: environment, Release: release, ServerName: serverName}
	}
}

// NewTransport parses dsn and returns a transport for it.
func NewTransport(dsn string, opts ...Option) (*Transport, error) {
	parsed, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		dsn:     parsed,
		client:  &http.Client{},
		timeout: defaultTimeout,
		now:     time.Now,
		newID:   NewEventID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// DSN returns the parsed DSN the transport sends to.
func (t *Transport) DSN() DSN { return t.dsn }

// Send posts event to the store endpoint and returns its event ID.
func (t *Transport) Send(ctx context.Context, event Event) (string, error) {
	if t == nil {
		return "", errors.New("error tracking transport not initialised")
	}
	if event.EventID == "" {
		event.EventID = t.newID()
	}
	body, err := json.Marshal(buildPayload(event, t.defaults, t.now))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return t.post(ctx, t.dsn.StoreURL(), "application/json", body, event.EventID)
}

// SendEnvelope wraps event in an envelope and posts it to the envelope endpoint.
func (t *Transport) SendEnvelope(ctx context.Context, event Event) (string, error) {
	if t == nil {
		return "", errors.New("error tracking transport not initialised")
	}
	if event.EventID == "" {
		event.EventID = t.newID()
	}
	payload, err := json.Marshal(buildPayload(event, t.defaults, t.now))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	header, err := json.Marshal(map[string]string{
		"event_id": event.EventID,
		"dsn":      t.dsn.String(),
		"sent_at":  t.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope header: %w", err)
	}
	itemHeader, err := json.Marshal(map[string]any{"type": "event", "length": len(payload)})
	if err != nil {
		return "", fmt.Errorf("marshal item header: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(header)
	buf.WriteByte('\n')
	buf.Write(itemHeader)
	buf.WriteByte('\n')
	buf.Write(payload)
	buf.WriteByte('\n')
	return t.post(ctx, t.dsn.EnvelopeURL(), "application/x-sentry-envelope", buf.Bytes(), event.EventID)
}

func (t *Transport) post(ctx context.Context, endpoint, contentType string, body []byte, eventID string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Sentry-Auth", t.dsn.AuthHeader(clientName+"/"+clientVersion))
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", errorForStatus(resp)
	}
	var ack struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&ack); err == nil && ack.ID != "" {
		return ack.ID, nil
	}
	return eventID, nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, summary)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, summary)
	default:
		return fmt.Errorf("error tracking request failed: %s", summary)
	}
}
