package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/pkg/errortracking"
)

func newErrorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Send and inspect error-tracking events",
	}
	cmd.AddCommand(newErrorsSendCmd(app), newErrorsParseDSNCmd(app))
	return cmd
}

func newErrorsSendCmd(app *App) *cobra.Command {
	var (
		dsn, message, level, environment string
		envelope                         bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a test event to an error-tracking DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = app.cfg.Settings.ErrorTrackingDSN
			}
			if strings.TrimSpace(dsn) == "" {
				return validationf("--dsn is required (or set errorTrackingDsn)")
			}
			if strings.TrimSpace(message) == "" {
				return validationf("--message is required")
			}
			host, _ := os.Hostname()
			transport, err := errortracking.NewTransport(dsn,
				errortracking.WithHTTPClient(app.HTTPClient),
				errortracking.WithTimeout(10*time.Second),
				errortracking.WithDefaults(environment, buildVersion, host),
			)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrValidation, err)
			}
			event := errortracking.Event{
				Level:   errortracking.ParseLevel(level),
				Message: message,
				Logger:  "temps-cli",
			}
			send := transport.Send
			if envelope {
				send = transport.SendEnvelope
			}
			id, err := send(app.context(cmd), event)
			if err != nil {
				return err
			}
			result := map[string]string{"event_id": id}
			return app.printer.Emit(result, func() error {
				app.printer.Success("event sent: %s", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Project DSN (defaults to errorTrackingDsn)")
	cmd.Flags().StringVar(&message, "message", "", "Event message")
	cmd.Flags().StringVar(&level, "level", "error", "debug, info, warning, error or fatal")
	cmd.Flags().StringVar(&environment, "environment", "", "Environment tag on the event")
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Use the envelope endpoint instead of store")
	return cmd
}

func newErrorsParseDSNCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-dsn <dsn>",
		Short: "Split a DSN into its parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := errortracking.ParseDSN(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", ErrValidation, err)
			}
			return app.printer.Emit(d, func() error {
				app.printer.Fields([][2]string{
					{"Protocol", d.Protocol},
					{"Public key", d.PublicKey},
					{"Host", d.Host},
					{"Project", d.ProjectID},
					{"Store URL", d.StoreURL()},
					{"Envelope URL", d.EnvelopeURL()},
				})
				return nil
			})
		},
	}
}
