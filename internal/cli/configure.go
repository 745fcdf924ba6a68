package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/pkg/config"
)

func newConfigureCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Read and change local CLI settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the effective value of a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := app.cfg.Get(args[0])
				if err != nil {
					return fmt.Errorf("%w: %w", ErrValidation, err)
				}
				fmt.Fprintln(app.Out, value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Persist a setting to the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.cfg.Set(args[0], args[1]); err != nil {
					return fmt.Errorf("%w: %w", ErrValidation, err)
				}
				value, _ := app.cfg.Get(args[0])
				app.printer.Success("%s set to %s", args[0], value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show every setting with its source",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				entries := app.cfg.List()
				return app.printer.Emit(entries, func() error {
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						rows = append(rows, []string{e.Key, displayValue(e), e.Source})
					}
					app.printer.Table([]string{"KEY", "VALUE", "SOURCE"}, rows, "No settings")
					return nil
				})
			},
		},
		newConfigureResetCmd(app),
		&cobra.Command{
			Use:   "path",
			Short: "Print the config and credentials file locations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				paths := map[string]string{
					"config.path":      app.cfg.ConfigPath(),
					"credentials.path": app.cfg.CredentialsPath(),
				}
				return app.printer.Emit(paths, func() error {
					app.printer.Fields([][2]string{
						{"config.path", paths["config.path"]},
						{"credentials.path", paths["credentials.path"]},
					})
					return nil
				})
			},
		},
	)
	return cmd
}

func newConfigureResetCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the config file; credentials are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := app.confirm("Reset all settings to their defaults?")
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := app.cfg.Reset(); err != nil {
				return err
			}
			app.printer.Success("configuration reset")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func displayValue(e config.Entry) string {
	if e.Value == "" {
		return "-"
	}
	return e.Value
}
