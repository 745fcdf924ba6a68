package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gotempsh/temps-cli/pkg/errortracking"
)

// Recognised config keys.
const (
	KeyAPIURL           = "apiUrl"
	KeyOutputFormat     = "outputFormat"
	KeyColorEnabled     = "colorEnabled"
	KeyDefaultProject   = "defaultProject"
	KeyRequestTimeout   = "requestTimeout"
	KeyPollInterval     = "pollInterval"
	KeyCacheRedisURL    = "cacheRedisUrl"
	KeyErrorTrackingDSN = "errorTrackingDsn"
)

// Output formats accepted by outputFormat.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// DefaultAPIURL is used when nothing else configures the control plane address.
const DefaultAPIURL = "http://localhost:3000/api"

// ErrUnknownKey indicates a config key outside the supported set.
var ErrUnknownKey = errors.New("unknown config key")

// ErrInvalidValue indicates a value that does not fit its key.
var ErrInvalidValue = errors.New("invalid config value")

// Kind describes how a key's value is validated and canonicalised.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindURL
	KindDuration
	KindChoice
)

// Key describes one entry of the flat config schema.
type Key struct {
	Name        string
	Kind        Kind
	Default     string
	Env         string
	Flag        string
	Description string
	Choices     []string
	Schemes     []string
	validate    func(string) error
}

var keys = []Key{
	{
		Name:        KeyAPIURL,
		Kind:        KindURL,
		Default:     DefaultAPIURL,
		Env:         "TEMPS_API_URL",
		Flag:        "api-url",
		Description: "Base URL of the control plane API",
		Schemes:     []string{"http", "https"},
	},
	{
		Name:        KeyOutputFormat,
		Kind:        KindChoice,
		Default:     OutputTable,
		Env:         "TEMPS_OUTPUT_FORMAT",
		Flag:        "output",
		Description: "Default output format",
		Choices:     []string{OutputTable, OutputJSON, OutputYAML},
	},
	{
		Name:        KeyColorEnabled,
		Kind:        KindBool,
		Default:     "true",
		Env:         "TEMPS_COLOR_ENABLED",
		Description: "Colorize terminal output",
	},
	{
		Name:        KeyDefaultProject,
		Kind:        KindString,
		Env:         "TEMPS_PROJECT",
		Description: "Project used when --project is omitted",
	},
	{
		Name:        KeyRequestTimeout,
		Kind:        KindDuration,
		Default:     "30s",
		Env:         "TEMPS_REQUEST_TIMEOUT",
		Description: "Timeout for a single API request",
	},
	{
		Name:        KeyPollInterval,
		Kind:        KindDuration,
		Default:     "5s",
		Env:         "TEMPS_POLL_INTERVAL",
		Description: "Interval between status polls",
	},
	{
		Name:        KeyCacheRedisURL,
		Kind:        KindURL,
		Env:         "TEMPS_CACHE_REDIS_URL",
		Description: "Redis URL for the shared status cache",
		Schemes:     []string{"redis", "rediss"},
	},
	{
		Name:        KeyErrorTrackingDSN,
		Kind:        KindString,
		Env:         "TEMPS_ERROR_TRACKING_DSN",
		Description: "DSN used by `errors send` when --dsn is omitted",
		validate: func(v string) error {
			_, err := errortracking.ParseDSN(v)
			return err
		},
	},
}

// Keys returns the supported config keys in display order.
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// LookupKey finds a key by name, ignoring case.
func LookupKey(name string) (Key, error) {
	trimmed := strings.TrimSpace(name)
	for _, k := range keys {
		if strings.EqualFold(k.Name, trimmed) {
			return k, nil
		}
	}
	return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// Normalize validates raw against the key and returns its canonical form.
// An empty value is accepted for keys without a default and means unset.
func (k Key) Normalize(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" && k.Kind != KindBool {
		if k.Default != "" {
			return "", fmt.Errorf("%w: %s cannot be empty", ErrInvalidValue, k.Name)
		}
		return "", nil
	}
	switch k.Kind {
	case KindBool:
		return strconv.FormatBool(ParseBool(value)), nil
	case KindURL:
		u, err := url.Parse(value)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("%w: %s must be an absolute URL", ErrInvalidValue, k.Name)
		}
		if !containsFold(k.Schemes, u.Scheme) {
			return "", fmt.Errorf("%w: %s scheme must be one of %s", ErrInvalidValue, k.Name, strings.Join(k.Schemes, ", "))
		}
		return strings.TrimRight(value, "/"), nil
	case KindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return "", fmt.Errorf("%w: %s must be a positive duration such as 5s", ErrInvalidValue, k.Name)
		}
		return d.String(), nil
	case KindChoice:
		lower := strings.ToLower(value)
		if !containsFold(k.Choices, lower) {
			return "", fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, k.Name, strings.Join(k.Choices, ", "))
		}
		return lower, nil
	}
	if k.validate != nil {
		if err := k.validate(value); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, k.Name, err)
		}
	}
	return value, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
