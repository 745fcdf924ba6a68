package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/config"
	"github.com/gotempsh/temps-cli/pkg/errortracking"
)

// NewRootCmd builds the temps-cli command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "temps-cli",
		Short: "Command line client for the Temps deployment platform",
		Long: `temps-cli manages projects, environments, deployments, domains, email,
backups and managed services on a Temps control plane.

Configuration resolves as defaults < config file < TEMPS_* environment < flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.teardown()
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&app.flags.apiURL, "api-url", "", "Temps API URL (env TEMPS_API_URL)")
	pf.StringVar(&app.flags.token, "token", "", "API token (env TEMPS_API_TOKEN)")
	pf.StringVarP(&app.flags.output, "output", "o", "", "Output format: table, json or yaml")
	pf.BoolVar(&app.flags.json, "json", false, "Shorthand for --output json")
	pf.BoolVar(&app.flags.noColor, "no-color", false, "Disable coloured output")
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	pf.StringVar(&app.flags.configDir, "config-dir", "", "Directory holding config.yaml and credentials.json (env TEMPS_CONFIG_DIR)")

	root.AddCommand(
		newVersionCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newConfigureCmd(app),
		newProjectsCmd(app),
		newEnvironmentsCmd(app),
		newDeploymentsCmd(app),
		newServicesCmd(app),
		newDomainsCmd(app),
		newEmailCmd(app),
		newBackupsCmd(app),
		newErrorsCmd(app),
	)
	return root
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.Out, buildVersion)
			return nil
		},
	}
}

// Execute runs the CLI against the process environment and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	err := NewRootCmd(app).ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	styles := ui.NewStyles(app.Err, !app.flags.noColor)
	fmt.Fprintln(app.Err, styles.Danger.Render("error: "+err.Error()))
	app.reportFailure(err)
	app.teardown()
	return 1
}

func isUserError(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotLoggedIn, ErrTokenExpired, ErrFailedState, config.ErrUnknownKey, config.ErrInvalidValue, ui.ErrNotInteractive, errortracking.ErrInvalidDSN} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// reportFailure ships a command failure to the configured error tracker.
// Validation and auth failures are user errors and are not reported.
func (a *App) reportFailure(err error) {
	if a.cfg == nil || a.cfg.Settings.ErrorTrackingDSN == "" || isUserError(err) {
		return
	}
	transport, terr := errortracking.NewTransport(a.cfg.Settings.ErrorTrackingDSN,
		errortracking.WithTimeout(3*time.Second),
		errortracking.WithDefaults("cli", buildVersion, ""),
	)
	if terr != nil {
		return
	}
	event := errortracking.ErrorEvent(err)
	event.Logger = "temps-cli"
	if _, serr := transport.Send(context.Background(), event); serr != nil && a.log != nil {
		a.log.Debug("error report failed", zap.Error(serr))
	}
}
