package errortracking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is the severity attached to an event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// ParseLevel maps user input to a Level, defaulting to error.
func ParseLevel(v string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(v))) {
	case LevelDebug:
		return LevelDebug
	case LevelInfo:
		return LevelInfo
	case LevelWarning, "warn":
		return LevelWarning
	case LevelFatal:
		return LevelFatal
	default:
		return LevelError
	}
}

// Exception describes one entry of an event's exception chain.
type Exception struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Module string `json:"module,omitempty"`
}

// Event is an error-tracking payload.
type Event struct {
	EventID     string
	Level       Level
	Message     string
	Logger      string
	Environment string
	Release     string
	ServerName  string
	Tags        map[string]string
	Extra       map[string]any
	Exceptions  []Exception
	OccurredAt  time.Time
}

// NewEventID returns a 32 character hex identifier.
func NewEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ErrorEvent builds an error-level event from err.
func ErrorEvent(err error) Event {
	if err == nil {
		return Event{Level: LevelError}
	}
	return Event{
		Level:      LevelError,
		Message:    err.Error(),
		Exceptions: []Exception{{Type: "error", Value: err.Error()}},
	}
}

func buildPayload(event Event, defaults Event, nowFn func() time.Time) map[string]any {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = nowFn()
	}
	level := event.Level
	if level == "" {
		level = LevelError
	}
	payload := map[string]any{
		"event_id":  event.EventID,
		"timestamp": occurred.UTC().Format(time.RFC3339Nano),
		"level":     string(level),
		"platform":  "go",
		"logger":    firstNonEmpty(event.Logger, "temps-cli"),
		"message":   strings.TrimSpace(event.Message),
		"sdk":       map[string]string{"name": clientName, "version": clientVersion},
	}
	if env := firstNonEmpty(event.Environment, defaults.Environment); env != "" {
		payload["environment"] = env
	}
	if release := firstNonEmpty(event.Release, defaults.Release); release != "" {
		payload["release"] = release
	}
	if server := firstNonEmpty(event.ServerName, defaults.ServerName); server != "" {
		payload["server_name"] = server
	}
	if len(event.Tags) > 0 {
		payload["tags"] = event.Tags
	}
	if len(event.Extra) > 0 {
		payload["extra"] = event.Extra
	}
	if len(event.Exceptions) > 0 {
		payload["exception"] = map[string]any{"values": event.Exceptions}
	}
	return payload
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
