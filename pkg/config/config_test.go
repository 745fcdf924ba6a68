package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryContext(t *testing.T, file map[string]string) *Context {
	t.Helper()
	ctx, err := Load(LoadOptions{
		Config:      NewMemoryStore("config", file),
		Credentials: NewMemoryStore("credentials", nil),
	})
	require.NoError(t, err)
	return ctx
}

func TestColorEnabledRoundTrip(t *testing.T) {
	ctx := newMemoryContext(t, nil)

	cases := map[string]string{
		"true":  "true",
		"1":     "true",
		"false": "false",
		"yes":   "false",
		"TRUE":  "false",
		"0":     "false",
	}
	for input, want := range cases {
		require.NoError(t, ctx.Set("colorEnabled", input), input)
		got, err := ctx.Get("colorEnabled")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, want == "true", ctx.Settings.ColorEnabled, "input %q", input)
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	ctx := newMemoryContext(t, nil)
	err := ctx.Set("colour", "true")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestSetValidatesValues(t *testing.T) {
	ctx := newMemoryContext(t, nil)

	err := ctx.Set(KeyOutputFormat, "xml")
	assert.True(t, errors.Is(err, ErrInvalidValue), "got %v", err)

	err = ctx.Set(KeyAPIURL, "not a url")
	assert.True(t, errors.Is(err, ErrInvalidValue), "got %v", err)

	err = ctx.Set(KeyPollInterval, "-3s")
	assert.True(t, errors.Is(err, ErrInvalidValue), "got %v", err)

	err = ctx.Set(KeyErrorTrackingDSN, "https://host.example/42")
	assert.True(t, errors.Is(err, ErrInvalidValue), "got %v", err)

	require.NoError(t, ctx.Set(KeyOutputFormat, "JSON"))
	assert.Equal(t, OutputJSON, ctx.Settings.OutputFormat)

	require.NoError(t, ctx.Set(KeyPollInterval, "3000ms"))
	assert.Equal(t, 3*time.Second, ctx.Settings.PollInterval)
}

func TestDefaults(t *testing.T) {
	ctx := newMemoryContext(t, nil)
	assert.Equal(t, DefaultAPIURL, ctx.Settings.APIURL)
	assert.Equal(t, OutputTable, ctx.Settings.OutputFormat)
	assert.True(t, ctx.Settings.ColorEnabled)
	assert.Equal(t, 30*time.Second, ctx.Settings.RequestTimeout)
	assert.Equal(t, 5*time.Second, ctx.Settings.PollInterval)
	assert.Empty(t, ctx.Settings.Token)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TEMPS_API_URL", "https://env.example/api")
	ctx := newMemoryContext(t, map[string]string{KeyAPIURL: "https://file.example/api"})

	assert.Equal(t, "https://env.example/api", ctx.Settings.APIURL)
	for _, entry := range ctx.List() {
		if entry.Key == KeyAPIURL {
			assert.Equal(t, SourceEnv, entry.Source)
		}
	}
}

func TestInvalidStoredValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("TEMPS_OUTPUT_FORMAT", "xml")
	ctx := newMemoryContext(t, map[string]string{KeyPollInterval: "0s"})

	assert.Equal(t, 5*time.Second, ctx.Settings.PollInterval)
	assert.Equal(t, OutputTable, ctx.Settings.OutputFormat)
	require.Len(t, ctx.Warnings, 2)
	for _, w := range ctx.Warnings {
		assert.ErrorIs(t, w, ErrInvalidValue)
	}

	require.NoError(t, ctx.Set(KeyPollInterval, "2s"))
	assert.Equal(t, 2*time.Second, ctx.Settings.PollInterval)
	require.Len(t, ctx.Warnings, 1)

	require.NoError(t, ctx.Reset())
	assert.Equal(t, 5*time.Second, ctx.Settings.PollInterval)
}

func TestInvalidFlagValueFailsLoad(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("output", "", "")
	require.NoError(t, fs.Parse([]string{"--output", "xml"}))

	_, err := Load(LoadOptions{
		Config:      NewMemoryStore("config", nil),
		Credentials: NewMemoryStore("credentials", nil),
		Flags:       fs,
	})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("TEMPS_API_URL", "https://env.example/api")
	t.Setenv("TEMPS_API_TOKEN", "env-token")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("api-url", "", "")
	fs.String("token", "", "")
	fs.String("output", "", "")
	require.NoError(t, fs.Parse([]string{"--api-url", "https://flag.example/api"}))

	ctx, err := Load(LoadOptions{
		Config:      NewMemoryStore("config", nil),
		Credentials: NewMemoryStore("credentials", map[string]string{"token": "stored"}),
		Flags:       fs,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example/api", ctx.Settings.APIURL)
	assert.Equal(t, "env-token", ctx.Settings.Token)
	assert.Equal(t, OutputTable, ctx.Settings.OutputFormat)
}

func TestCredentialsProvideTokenAndAPIURL(t *testing.T) {
	ctx, err := Load(LoadOptions{
		Config: NewMemoryStore("config", nil),
		Credentials: NewMemoryStore("credentials", map[string]string{
			"token":  "tk_abc",
			"apiUrl": "https://temps.example/api",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "tk_abc", ctx.Settings.Token)
	assert.Equal(t, "https://temps.example/api", ctx.Settings.APIURL)
	assert.True(t, ctx.Credentials.LoggedIn())
}

func TestResetKeepsCredentials(t *testing.T) {
	cfgStore := NewMemoryStore("config", map[string]string{KeyOutputFormat: "yaml"})
	credStore := NewMemoryStore("credentials", map[string]string{"token": "tk"})
	ctx, err := Load(LoadOptions{Config: cfgStore, Credentials: credStore})
	require.NoError(t, err)
	assert.Equal(t, OutputYAML, ctx.Settings.OutputFormat)

	require.NoError(t, ctx.Reset())
	assert.Equal(t, OutputTable, ctx.Settings.OutputFormat)
	assert.Equal(t, "tk", ctx.Settings.Token)

	values, err := cfgStore.Load()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSaveAndClearCredentials(t *testing.T) {
	ctx := newMemoryContext(t, nil)
	require.NoError(t, ctx.SaveCredentials(Credentials{Token: "tk_1", Email: "dev@example.com"}))
	assert.Equal(t, "tk_1", ctx.Settings.Token)
	assert.False(t, ctx.Credentials.SavedAt.IsZero())

	require.NoError(t, ctx.ClearCredentials())
	assert.Empty(t, ctx.Settings.Token)
	assert.False(t, ctx.Credentials.LoggedIn())
}

func TestFileStoresPersistWithOwnerOnlyPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temps")
	cfgStore, credStore := FileStores(dir)

	ctx, err := Load(LoadOptions{Config: cfgStore, Credentials: credStore})
	require.NoError(t, err)
	require.NoError(t, ctx.Set(KeyColorEnabled, "1"))
	require.NoError(t, ctx.SaveCredentials(Credentials{Token: "tk_file"}))

	info, err := os.Stat(cfgStore.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	reloaded, err := Load(LoadOptions{Config: cfgStore, Credentials: credStore})
	require.NoError(t, err)
	got, err := reloaded.Get("colorEnabled")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
	assert.Equal(t, "tk_file", reloaded.Settings.Token)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), reloaded.ConfigPath())
	assert.Equal(t, filepath.Join(dir, "credentials.json"), reloaded.CredentialsPath())
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"), FormatYAML)
	values, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, values)
	require.NoError(t, store.Delete())
}

func TestDefaultDirHonoursEnvironment(t *testing.T) {
	t.Setenv("TEMPS_CONFIG_DIR", "/tmp/temps-test")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/temps-test", dir)
}
