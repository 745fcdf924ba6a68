package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/config"
	"github.com/gotempsh/temps-cli/pkg/jwt"
	"github.com/gotempsh/temps-cli/pkg/logger"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

var buildVersion = "dev"

var (
	// ErrValidation marks input rejected before any request is sent.
	ErrValidation = errors.New("validation failed")
	// ErrNotLoggedIn is returned by commands that need a token when none is configured.
	ErrNotLoggedIn = errors.New("please login first using 'temps-cli login'")
	// ErrTokenExpired is returned when the stored token is a JWT past its expiry.
	ErrTokenExpired = errors.New("your session has expired; run 'temps-cli login' again")
	// ErrFailedState is returned when a watched resource settles in a failed status.
	ErrFailedState = errors.New("ended in a failed state")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// App carries the injected dependencies and per-invocation state shared by
// every command.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// ConfigStore and CredentialStore default to files under --config-dir.
	ConfigStore     config.Store
	CredentialStore config.Store
	// HTTPClient overrides the API transport.
	HTTPClient *http.Client
	// Confirm asks the user a yes/no question. Defaults to a terminal prompt.
	Confirm func(title string) (bool, error)
	// Logger overrides the zap logger built from --verbose.
	Logger *zap.Logger
	Now    func() time.Time

	flags   globalFlags
	cfg     *config.Context
	log     *zap.Logger
	printer *ui.Printer
	cache   poll.Store
	closers []func() error
}

type globalFlags struct {
	apiURL    string
	token     string
	output    string
	configDir string
	json      bool
	noColor   bool
	verbose   bool
}

// NewApp returns an App wired to the process's standard streams.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	a.log = a.Logger
	if a.log == nil {
		log, err := logger.New("temps-cli", a.flags.verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.log = log
	}

	cfgStore, credStore := a.ConfigStore, a.CredentialStore
	if cfgStore == nil || credStore == nil {
		dir := strings.TrimSpace(a.flags.configDir)
		if dir == "" {
			var err error
			if dir, err = config.DefaultDir(); err != nil {
				return err
			}
		}
		fileCfg, fileCreds := config.FileStores(dir)
		if cfgStore == nil {
			cfgStore = fileCfg
		}
		if credStore == nil {
			credStore = fileCreds
		}
	}
	cfg, err := config.Load(config.LoadOptions{Config: cfgStore, Credentials: credStore, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg

	format := cfg.Settings.OutputFormat
	if a.flags.json {
		format = ui.FormatJSON
	}
	color := cfg.Settings.ColorEnabled && !a.flags.noColor
	a.printer = ui.NewPrinter(a.Out, a.Err, format, color)
	for _, w := range cfg.Warnings {
		a.log.Warn("ignoring invalid config value", zap.Error(w))
		a.printer.Warn("%v", w)
	}
	a.log.Debug("configuration resolved",
		zap.String("api_url", cfg.Settings.APIURL),
		zap.String("config_path", cfg.ConfigPath()),
		zap.String("output", format),
	)
	return nil
}

func (a *App) teardown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Debug("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// requireAuth fails fast when no usable token is configured. It never
// touches the network.
func (a *App) requireAuth() error {
	token := a.cfg.Settings.Token
	if token == "" {
		return ErrNotLoggedIn
	}
	if jwt.Expired(token, a.Now()) {
		return ErrTokenExpired
	}
	return nil
}

// client returns an authenticated API client.
func (a *App) client() (*client.Client, error) {
	if err := a.requireAuth(); err != nil {
		return nil, err
	}
	return a.newClient(a.cfg.Settings.APIURL, a.cfg.Settings.Token)
}

func (a *App) newClient(apiURL, token string) (*client.Client, error) {
	opts := []client.Option{
		client.WithToken(token),
		client.WithLogger(a.log),
		client.WithUserAgent("temps-cli/" + buildVersion),
	}
	if a.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(a.HTTPClient))
	}
	opts = append(opts, client.WithTimeout(a.cfg.Settings.RequestTimeout))
	return client.New(apiURL, opts...)
}

// cacheStore returns the poll cache: Redis when cacheRedisUrl is set,
// otherwise process memory.
func (a *App) cacheStore() poll.Store {
	if a.cache != nil {
		return a.cache
	}
	if url := a.cfg.Settings.CacheRedisURL; url != "" {
		store, err := poll.NewRedisStore(url, a.log)
		if err == nil {
			a.cache = store
			a.closers = append(a.closers, store.Close)
			return store
		}
		a.log.Warn("redis poll cache unavailable, using memory", zap.Error(err))
	}
	a.cache = poll.NewMemoryStore()
	return a.cache
}

func (a *App) confirm(title string) (bool, error) {
	if a.Confirm != nil {
		return a.Confirm(title)
	}
	return ui.Confirm(a.In, title)
}

// spinner is enabled only for interactive table output.
func (a *App) spinner(message string) *ui.Spinner {
	return ui.NewSpinner(message, !a.printer.Structured() && ui.IsTerminal(a.Out))
}

func (a *App) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
