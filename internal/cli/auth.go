package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/config"
	"github.com/gotempsh/temps-cli/pkg/jwt"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an API token for later commands",
		Long: `Verifies an API token against the control plane and stores it in the
credentials file. Pass --token, set TEMPS_API_TOKEN, or enter it at the prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(app.flags.token)
			if token == "" {
				token = config.GetString("TEMPS_API_TOKEN", "")
			}
			if token == "" {
				var err error
				token, err = ui.ReadSecret(app.In, app.Err, "API token: ")
				if err != nil {
					return err
				}
			}
			if token == "" {
				return validationf("an API token is required")
			}
			if jwt.Expired(token, app.Now()) {
				return ErrTokenExpired
			}

			apiURL := app.cfg.Settings.APIURL
			c, err := app.newClient(apiURL, token)
			if err != nil {
				return err
			}
			user, err := c.Users.Me(app.context(cmd))
			if err != nil {
				return err
			}
			email := ""
			if user.Email != nil {
				email = *user.Email
			}
			if err := app.cfg.SaveCredentials(config.Credentials{APIURL: apiURL, Token: token, Email: email}); err != nil {
				return err
			}
			app.printer.Success("login successful")
			app.printer.Line("Logged in as %s on %s", ui.Dash(firstNonEmpty(email, user.Username)), apiURL)
			return nil
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.cfg.ClearCredentials(); err != nil {
				return err
			}
			app.printer.Success("logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the stored token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			user, err := c.Users.Me(app.context(cmd))
			if err != nil {
				return err
			}
			return app.printer.Emit(user, func() error {
				app.printer.Fields([][2]string{
					{"Username", user.Username},
					{"Name", ui.Dash(user.Name)},
					{"Email", ui.Deref(user.Email)},
					{"MFA", yesNo(user.MFAEnabled)},
					{"API", c.BaseURL()},
				})
				return nil
			})
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
