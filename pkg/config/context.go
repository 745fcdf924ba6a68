package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	tokenKey  = "token"
	tokenEnv  = "TEMPS_API_TOKEN"
	tokenFlag = "token"
)

// Value sources reported by List.
const (
	SourceDefault     = "default"
	SourceFile        = "file"
	SourceCredentials = "credentials"
	SourceEnv         = "env"
	SourceFlag        = "flag"
)

// Settings is the typed view of the resolved configuration.
type Settings struct {
	APIURL           string
	Token            string
	OutputFormat     string
	ColorEnabled     bool
	DefaultProject   string
	RequestTimeout   time.Duration
	PollInterval     time.Duration
	CacheRedisURL    string
	ErrorTrackingDSN string
}

// Entry is one resolved key as shown by `configure list`.
type Entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// LoadOptions wires the storage backends and, optionally, the command
// line flags that take precedence over everything else.
type LoadOptions struct {
	Config      Store
	Credentials Store
	Flags       *pflag.FlagSet
}

// Context carries configuration and credentials through a command
// invocation. Values resolve as defaults < config file < TEMPS_* env < flags.
type Context struct {
	Settings    Settings
	Credentials Credentials
	// Warnings lists file and env values that failed validation and were
	// replaced by their defaults. Invalid flag values fail Load instead.
	Warnings []error

	configStore Store
	credStore   Store
	flags       *pflag.FlagSet
	file        map[string]string
	resolved    map[string]string
}

// Load reads both stores and resolves the effective settings.
func Load(opts LoadOptions) (*Context, error) {
	if opts.Config == nil || opts.Credentials == nil {
		return nil, errors.New("config: config and credentials stores are required")
	}
	file, err := opts.Config.Load()
	if err != nil {
		return nil, err
	}
	credValues, err := opts.Credentials.Load()
	if err != nil {
		return nil, err
	}
	c := &Context{
		Credentials: credentialsFromValues(credValues),
		configStore: opts.Config,
		credStore:   opts.Credentials,
		flags:       opts.Flags,
		file:        canonicalFileValues(file),
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

func canonicalFileValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for name, value := range in {
		k, err := LookupKey(name)
		if err != nil {
			continue
		}
		out[k.Name] = value
	}
	return out
}

func (c *Context) resolve() error {
	v := viper.New()
	defaults := make(map[string]string, len(keys))
	for _, k := range keys {
		def := k.Default
		if k.Name == KeyAPIURL && c.Credentials.APIURL != "" {
			def = c.Credentials.APIURL
		}
		defaults[k.Name] = def
		v.SetDefault(k.Name, def)
		if k.Env != "" {
			if err := v.BindEnv(k.Name, k.Env); err != nil {
				return fmt.Errorf("bind env %s: %w", k.Env, err)
			}
		}
		c.bindFlag(v, k.Name, k.Flag)
	}
	v.SetDefault(tokenKey, c.Credentials.Token)
	if err := v.BindEnv(tokenKey, tokenEnv); err != nil {
		return fmt.Errorf("bind env %s: %w", tokenEnv, err)
	}
	c.bindFlag(v, tokenKey, tokenFlag)

	fileValues := make(map[string]any, len(c.file))
	for name, value := range c.file {
		fileValues[name] = value
	}
	if err := v.MergeConfigMap(fileValues); err != nil {
		return fmt.Errorf("merge config values: %w", err)
	}

	var warnings []error
	resolved := make(map[string]string, len(keys))
	for _, k := range keys {
		raw := v.GetString(k.Name)
		value, err := k.Normalize(raw)
		if err != nil {
			source := c.source(k)
			if source == SourceFlag {
				return fmt.Errorf("%w (from %s)", err, source)
			}
			warnings = append(warnings, fmt.Errorf("%w (from %s, using default)", err, source))
			if value, err = k.Normalize(defaults[k.Name]); err != nil {
				value = k.Default
			}
		}
		resolved[k.Name] = value
	}
	c.Warnings = warnings
	c.resolved = resolved
	c.Settings = Settings{
		APIURL:           resolved[KeyAPIURL],
		Token:            strings.TrimSpace(v.GetString(tokenKey)),
		OutputFormat:     resolved[KeyOutputFormat],
		ColorEnabled:     ParseBool(resolved[KeyColorEnabled]),
		DefaultProject:   resolved[KeyDefaultProject],
		RequestTimeout:   mustDuration(resolved[KeyRequestTimeout]),
		PollInterval:     mustDuration(resolved[KeyPollInterval]),
		CacheRedisURL:    resolved[KeyCacheRedisURL],
		ErrorTrackingDSN: resolved[KeyErrorTrackingDSN],
	}
	return nil
}

func (c *Context) bindFlag(v *viper.Viper, key, name string) {
	if c.flags == nil || name == "" {
		return
	}
	if f := c.flags.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func mustDuration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func (c *Context) source(k Key) string {
	if c.flags != nil && k.Flag != "" {
		if f := c.flags.Lookup(k.Flag); f != nil && f.Changed {
			return SourceFlag
		}
	}
	if k.Env != "" {
		if value, ok := os.LookupEnv(k.Env); ok && value != "" {
			return SourceEnv
		}
	}
	if _, ok := c.file[k.Name]; ok {
		return SourceFile
	}
	if k.Name == KeyAPIURL && c.Credentials.APIURL != "" {
		return SourceCredentials
	}
	return SourceDefault
}

// Get returns the resolved value of a key.
func (c *Context) Get(name string) (string, error) {
	k, err := LookupKey(name)
	if err != nil {
		return "", err
	}
	return c.resolved[k.Name], nil
}

// Set validates and persists a key, then re-resolves.
func (c *Context) Set(name, value string) error {
	k, err := LookupKey(name)
	if err != nil {
		return err
	}
	normalized, err := k.Normalize(value)
	if err != nil {
		return err
	}
	next := copyValues(c.file)
	if normalized == "" {
		delete(next, k.Name)
	} else {
		next[k.Name] = normalized
	}
	if err := c.configStore.Save(next); err != nil {
		return err
	}
	c.file = next
	return c.resolve()
}

// List returns every key with its resolved value and where it came from.
func (c *Context) List() []Entry {
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k.Name, Value: c.resolved[k.Name], Source: c.source(k)})
	}
	return entries
}

// Reset removes the config file. Credentials are left alone.
func (c *Context) Reset() error {
	if err := c.configStore.Delete(); err != nil {
		return err
	}
	c.file = map[string]string{}
	return c.resolve()
}

// SaveCredentials persists creds and makes them effective.
func (c *Context) SaveCredentials(creds Credentials) error {
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	if err := c.credStore.Save(creds.values()); err != nil {
		return err
	}
	c.Credentials = creds
	return c.resolve()
}

// ClearCredentials forgets the stored token.
func (c *Context) ClearCredentials() error {
	if err := c.credStore.Delete(); err != nil {
		return err
	}
	c.Credentials = Credentials{}
	return c.resolve()
}

// ConfigPath is the location reported as config.path.
func (c *Context) ConfigPath() string { return c.configStore.Path() }

// CredentialsPath is the location reported as credentials.path.
func (c *Context) CredentialsPath() string { return c.credStore.Path() }
