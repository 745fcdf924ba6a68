package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const tailHandshakeTimeout = 10 * time.Second

// TailError is a failure reported in-band by the log stream.
type TailError struct {
	Message string
	Detail  string
}

func (e *TailError) Error() string {
	if e.Detail == "" {
		return "log stream: " + e.Message
	}
	return fmt.Sprintf("log stream: %s: %s", e.Message, e.Detail)
}

// TailJobLogs streams a job's log lines over a websocket until the server
// closes the stream or ctx is done. Each line is passed to fn; a non-nil
// return from fn stops the tail and is returned.
func (s *DeploymentsService) TailJobLogs(ctx context.Context, projectID, deploymentID int, jobID string, fn func(line string) error) error {
	c := s.client
	endpoint, err := c.websocketURL(pathf("/projects/%d/deployments/%d/jobs/%s/logs/tail", projectID, deploymentID, jobID))
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: tailHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
		}
		return fmt.Errorf("open log stream: %w", err)
	}
	defer conn.Close()
	c.logger.Debug("log stream opened", zap.String("url", endpoint))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read log stream: %w", err)
		}
		if tailErr := parseTailError(payload); tailErr != nil {
			return tailErr
		}
		for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
			if err := fn(line); err != nil {
				return err
			}
		}
	}
}

func parseTailError(payload []byte) error {
	text := strings.TrimSpace(string(payload))
	if rest, ok := strings.CutPrefix(text, "ERROR:"); ok {
		return &TailError{Message: strings.TrimSpace(rest)}
	}
	if !strings.HasPrefix(text, "{") {
		return nil
	}
	var msg struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Error == "" {
		return nil
	}
	return &TailError{Message: msg.Error, Detail: msg.Detail}
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("build log stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("unsupported api url scheme " + u.Scheme)
	}
	return u.String(), nil
}
