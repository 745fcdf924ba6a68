package errortracking

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const sentryVersion = 7

// ErrInvalidDSN indicates a DSN that does not have the
// scheme://publicKey@host/projectId shape.
var ErrInvalidDSN = errors.New("invalid dsn")

// DSN identifies the project an event belongs to and the key it is sent with.
type DSN struct {
	Protocol  string `json:"protocol"`
	PublicKey string `json:"public_key"`
	Host      string `json:"host"`
	ProjectID string `json:"project_id"`
}

// ParseDSN splits a DSN of the form scheme://publicKey@host[:port]/projectId.
func ParseDSN(raw string) (DSN, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DSN{}, fmt.Errorf("%w: empty", ErrInvalidDSN)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return DSN{}, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return DSN{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDSN, u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return DSN{}, fmt.Errorf("%w: missing public key", ErrInvalidDSN)
	}
	if u.Hostname() == "" {
		return DSN{}, fmt.Errorf("%w: missing host", ErrInvalidDSN)
	}
	projectID := strings.TrimLeft(u.Path, "/")
	if _, err := strconv.ParseInt(projectID, 10, 32); err != nil {
		return DSN{}, fmt.Errorf("%w: project id %q is not a number", ErrInvalidDSN, projectID)
	}
	return DSN{
		Protocol:  u.Scheme,
		PublicKey: u.User.Username(),
		Host:      u.Host,
		ProjectID: projectID,
	}, nil
}

func (d DSN) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", d.Protocol, d.PublicKey, d.Host, d.ProjectID)
}

// StoreURL is the endpoint accepting single JSON events.
func (d DSN) StoreURL() string {
	return fmt.Sprintf("%s://%s/api/%s/store/", d.Protocol, d.Host, d.ProjectID)
}

// EnvelopeURL is the endpoint accepting envelopes.
func (d DSN) EnvelopeURL() string {
	return fmt.Sprintf("%s://%s/api/%s/envelope/", d.Protocol, d.Host, d.ProjectID)
}

// AuthHeader is the X-Sentry-Auth value for requests made by client.
func (d DSN) AuthHeader(client string) string {
	header := fmt.Sprintf("Sentry sentry_key=%s,sentry_version=%d", d.PublicKey, sentryVersion)
	if client != "" {
		header += ",sentry_client=" + client
	}
	return header
}
