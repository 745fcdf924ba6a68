package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

func newEmailCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Manage transactional email",
	}
	domains := &cobra.Command{
		Use:   "domains",
		Short: "Manage sending domains",
	}
	domains.AddCommand(
		newEmailDomainsListCmd(app),
		newEmailDomainsAddCmd(app),
		newEmailDomainsShowCmd(app),
		newEmailDomainsVerifyCmd(app),
		newEmailDomainsRemoveCmd(app),
	)
	cmd.AddCommand(domains)
	return cmd
}

func newEmailDomainsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sending domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			domains, err := c.Email.ListDomains(app.context(cmd))
			if err != nil {
				return err
			}
			return app.printer.Emit(domains, func() error {
				rows := make([][]string, 0, len(domains))
				for _, d := range domains {
					rows = append(rows, []string{
						strconv.Itoa(d.ID),
						d.Domain,
						app.printer.Styles.Tone(emailTone(d.Status), string(d.Status)),
						strconv.Itoa(d.ProviderID),
						ui.Deref(d.LastVerifiedAt),
					})
				}
				app.printer.Table([]string{"ID", "DOMAIN", "STATUS", "PROVIDER", "LAST VERIFIED"}, rows, "No email domains found")
				return nil
			})
		},
	}
}

func newEmailDomainsAddCmd(app *App) *cobra.Command {
	var provider int
	cmd := &cobra.Command{
		Use:   "add <domain>",
		Short: "Register a sending domain with an email provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(args[0]))
			if name == "" {
				return validationf("domain is empty")
			}
			if provider <= 0 {
				return validationf("--provider is required")
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			details, err := c.Email.CreateDomain(app.context(cmd), provider, name)
			if err != nil {
				return err
			}
			return app.printer.Emit(details, func() error {
				app.printer.Success("email domain added: %s (%d)", details.Domain.Domain, details.Domain.ID)
				app.printer.Line("Publish these records, then run: temps-cli email domains verify %d", details.Domain.ID)
				renderDNSRecords(app.printer, details.DNSRecords)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&provider, "provider", 0, "Email provider id")
	return cmd
}

func newEmailDomainsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <email-domain-id>",
		Short: "Show a sending domain and the DNS records it needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "email domain")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			details, err := c.Email.GetDomain(app.context(cmd), id)
			if err != nil {
				return err
			}
			return app.printer.Emit(details, func() error {
				renderEmailDomain(app.printer, details.Domain)
				app.printer.Line("")
				renderDNSRecords(app.printer, details.DNSRecords)
				return nil
			})
		},
	}
}

func newEmailDomainsVerifyCmd(app *App) *cobra.Command {
	var (
		wait bool
		wf   watchFlags
	)
	cmd := &cobra.Command{
		Use:   "verify <email-domain-id>",
		Short: "Check the published DNS records of a sending domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "email domain")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			d, err := c.Email.VerifyDomain(app.context(cmd), id)
			if err != nil {
				return err
			}
			if wait && !d.Status.Terminal() {
				d, _, err = watch(app, cmd, wf, watchSpec[client.EmailDomain]{
					resource: "email_domain",
					key:      poll.Key("email_domain", strconv.Itoa(id)),
					message:  "Verifying " + d.Domain,
					fetch: func(ctx context.Context) (client.EmailDomain, error) {
						details, err := c.Email.GetDomain(ctx, id)
						return details.Domain, err
					},
					classify: client.EmailDomainDecision,
					describe: func(d client.EmailDomain) string {
						return fmt.Sprintf("%s %s", d.Domain, d.Status)
					},
				})
				if err != nil {
					return err
				}
			}
			return app.printer.Emit(d, func() error {
				renderEmailDomain(app.printer, d)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until verification concludes")
	wf.register(cmd, 10*time.Minute)
	return cmd
}

func newEmailDomainsRemoveCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <email-domain-id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a sending domain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "email domain")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			if !force {
				ok, err := app.confirm(fmt.Sprintf("Delete email domain %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := c.Email.DeleteDomain(app.context(cmd), id); err != nil {
				return err
			}
			app.printer.Success("email domain %d deleted", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func renderEmailDomain(p *ui.Printer, d client.EmailDomain) {
	p.Fields([][2]string{
		{"ID", strconv.Itoa(d.ID)},
		{"Domain", d.Domain},
		{"Status", p.Styles.Tone(emailTone(d.Status), string(d.Status))},
		{"Provider", strconv.Itoa(d.ProviderID)},
		{"Last verified", ui.Deref(d.LastVerifiedAt)},
	})
	if d.VerificationError != nil && *d.VerificationError != "" {
		p.Warn("verification error: %s", *d.VerificationError)
	}
}

func renderDNSRecords(p *ui.Printer, records []client.DNSRecord) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		priority := "-"
		if r.Priority != nil {
			priority = strconv.Itoa(*r.Priority)
		}
		rows = append(rows, []string{r.RecordType, r.Name, r.Value, priority})
	}
	p.Table([]string{"TYPE", "NAME", "VALUE", "PRIORITY"}, rows, "No DNS records")
}
