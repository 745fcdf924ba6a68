package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

func parseID(raw, what string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, validationf("invalid %s id %q", what, raw)
	}
	return id, nil
}

// projectFlag registers -p/--project on cmd.
func projectFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVarP(dst, "project", "p", "", "Project slug or id (defaults to defaultProject)")
}

// resolveProject turns a slug or id into a project, falling back to the
// defaultProject setting.
func (a *App) resolveProject(ctx context.Context, c *client.Client, ref string) (client.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = a.cfg.Settings.DefaultProject
	}
	if ref == "" {
		return client.Project{}, validationf("--project is required (or set defaultProject)")
	}
	return c.Projects.Resolve(ctx, ref)
}

// cacheFlag registers --cached, which prefers the snapshot a running watch
// stored over a live fetch.
func cacheFlag(cmd *cobra.Command, dst *bool) {
	cmd.Flags().BoolVar(dst, "cached", false, "Print the last status stored by a running watch, if any")
}

type watchFlags struct {
	timeout     time.Duration
	interval    time.Duration
	metricsAddr string
}

func (w *watchFlags) register(cmd *cobra.Command, defaultTimeout time.Duration) {
	cmd.Flags().DurationVar(&w.timeout, "timeout", defaultTimeout, "Stop watching after this long (0 waits forever)")
	cmd.Flags().DurationVar(&w.interval, "interval", 0, "Poll interval (defaults to pollInterval)")
	cmd.Flags().StringVar(&w.metricsAddr, "metrics-addr", "", "Serve poll metrics on this address, e.g. :9090")
}

type watchSpec[T any] struct {
	resource string
	key      string
	message  string
	fetch    func(ctx context.Context) (T, error)
	classify func(T) poll.Decision
	describe func(T) string
}

// watch follows a resource with the poller while showing a spinner.
// Giving up is reported as a warning, not an error. Ending in a failed
// status is an error wrapping ErrFailedState.
func watch[T any](a *App, cmd *cobra.Command, wf watchFlags, target watchSpec[T]) (T, poll.Result, error) {
	ctx := a.context(cmd)
	metrics, err := a.serveMetrics(wf.metricsAddr)
	if err != nil {
		var zero T
		return zero, poll.Result{}, err
	}
	interval := wf.interval
	if interval <= 0 {
		interval = a.cfg.Settings.PollInterval
	}

	sp := a.spinner(target.message)
	sp.Start(ctx)
	v, res, err := poll.Run(ctx, poll.Options[T]{
		Resource:    target.resource,
		Fetch:       target.fetch,
		Classify:    target.classify,
		Interval:    interval,
		MaxDuration: wf.timeout,
		Store:       a.cacheStore(),
		Key:         target.key,
		Metrics:     metrics,
		Logger:      a.log,
		OnUpdate: func(v T, s poll.State) {
			sp.Update(target.message + " (" + s.Status + ")")
		},
	})
	switch {
	case err != nil:
		sp.Fail(target.message + " failed")
	case res.GaveUp:
		sp.Stop(target.message + " still " + res.State.Status)
		a.printer.Warn("stopped watching after %s; last status %s", wf.timeout, res.State.Status)
	case res.Failed:
		sp.Fail(target.describe(v))
		err = fmt.Errorf("%w: %s", ErrFailedState, target.describe(v))
	default:
		sp.Stop(target.describe(v))
	}
	return v, res, err
}

// cached returns the value a watch last stored under key. A miss or an
// unreadable entry reports false so callers fetch live instead.
func cached[T any](ctx context.Context, a *App, key string) (T, bool) {
	v, ok, err := poll.Load[T](ctx, a.cacheStore(), key)
	if err != nil {
		a.log.Warn("poll cache read failed", zap.String("key", key), zap.Error(err))
		return v, false
	}
	if ok {
		a.log.Debug("served from poll cache", zap.String("key", key))
	}
	return v, ok
}

// serveMetrics exposes poll metrics over HTTP for the lifetime of the command.
func (a *App) serveMetrics(addr string) (*poll.Metrics, error) {
	if addr == "" {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	metrics := poll.NewMetrics(reg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, validationf("metrics address %s: %v", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.log.Debug("serving poll metrics", zap.String("addr", ln.Addr().String()))
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return metrics, nil
}
