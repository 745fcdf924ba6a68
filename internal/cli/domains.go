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
	"github.com/gotempsh/temps-cli/pkg/verification"
)

func newDomainsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "domains",
		Aliases: []string{"domain"},
		Short:   "Manage custom domains and their certificates",
		Long: `Custom domains move through certificate verification in stages:
no_order, order_created, challenge_ready, verifying, then active or failed.
Each mutation below refetches the domain and prints its new stage.`,
	}
	cmd.AddCommand(
		newDomainsListCmd(app),
		newDomainsAddCmd(app),
		newDomainsShowCmd(app),
		newDomainsRemoveCmd(app),
		newDomainMutationCmd(app, "order", "Open an ACME order for a domain", (*verification.Flow).CreateOrder),
		newDomainsChallengeCmd(app),
		newDomainMutationCmd(app, "verify", "Finalize the order once the challenge records are published", (*verification.Flow).Verify),
		newDomainMutationCmd(app, "cancel", "Cancel the pending order", (*verification.Flow).Cancel),
		newDomainMutationCmd(app, "renew", "Request a new certificate", (*verification.Flow).Renew),
		newDomainsWatchCmd(app),
	)
	return cmd
}

func (a *App) flow(c *client.Client, domain string) (*verification.Flow, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, validationf("domain is empty")
	}
	return verification.New(c.Domains, domain, verification.WithLogger(a.log)), nil
}

func newDomainsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List custom domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			domains, err := c.Domains.List(app.context(cmd))
			if err != nil {
				return err
			}
			return app.printer.Emit(domains, func() error {
				rows := make([][]string, 0, len(domains))
				for _, d := range domains {
					expires := "-"
					if d.ExpirationTime != nil {
						expires = d.ExpirationTime.String()
					}
					rows = append(rows, []string{
						strconv.Itoa(d.ID),
						d.Domain,
						app.printer.Styles.Tone(domainTone(d.Status), string(d.Status)),
						ui.Dash(d.VerificationMethod),
						expires,
					})
				}
				app.printer.Table([]string{"ID", "DOMAIN", "STATUS", "METHOD", "EXPIRES"}, rows, "No domains found")
				return nil
			})
		},
	}
}

func newDomainsAddCmd(app *App) *cobra.Command {
	var challenge string
	cmd := &cobra.Command{
		Use:   "add <domain>",
		Short: "Register a custom domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(args[0]))
			if name == "" {
				return validationf("domain is empty")
			}
			if challenge != client.ChallengeHTTP01 && challenge != client.ChallengeDNS01 {
				return validationf("--challenge must be %s or %s", client.ChallengeHTTP01, client.ChallengeDNS01)
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			d, err := c.Domains.Create(app.context(cmd), name, challenge)
			if err != nil {
				return err
			}
			return app.printer.Emit(d, func() error {
				app.printer.Success("domain added: %s", d.Domain)
				app.printer.Line("Next: temps-cli domains order %s", d.Domain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&challenge, "challenge", client.ChallengeHTTP01, "ACME challenge type: http-01 or dns-01")
	return cmd
}

func newDomainsShowCmd(app *App) *cobra.Command {
	var fromCache bool
	cmd := &cobra.Command{
		Use:   "show <domain>",
		Short: "Show a domain with its order, challenge and verification stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			f, err := app.flow(c, args[0])
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			snap, hit := verification.Snapshot{}, false
			if fromCache {
				snap, hit = cached[verification.Snapshot](ctx, app, f.CacheKey())
			}
			if !hit {
				if snap, err = f.Refresh(ctx); err != nil {
					return err
				}
			}
			return app.printer.Emit(snap, func() error {
				renderSnapshot(app.printer, snap)
				return nil
			})
		},
	}
	cacheFlag(cmd, &fromCache)
	return cmd
}

func newDomainsRemoveCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <domain>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a custom domain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(args[0]))
			if name == "" {
				return validationf("domain is empty")
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			if !force {
				ok, err := app.confirm(fmt.Sprintf("Delete domain %s and its certificate?", name))
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := c.Domains.Delete(app.context(cmd), name); err != nil {
				return err
			}
			app.printer.Success("domain deleted: %s", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newDomainsChallengeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <domain>",
		Short: "Print the DNS records that prove domain ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			f, err := app.flow(c, args[0])
			if err != nil {
				return err
			}
			ch, err := f.Challenge(app.context(cmd))
			if err != nil {
				return err
			}
			return app.printer.Emit(ch, func() error {
				renderChallenge(app.printer, ch)
				return nil
			})
		},
	}
}

type flowMutation func(*verification.Flow, context.Context) (verification.Snapshot, error)

func newDomainMutationCmd(app *App, use, short string, mutate flowMutation) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <domain>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			f, err := app.flow(c, args[0])
			if err != nil {
				return err
			}
			sp := app.spinner(fmt.Sprintf("%s %s", use, f.Domain()))
			ctx := app.context(cmd)
			sp.Start(ctx)
			snap, err := mutate(f, ctx)
			if err != nil {
				sp.Fail(fmt.Sprintf("%s %s failed", use, f.Domain()))
				return err
			}
			sp.Stop(fmt.Sprintf("%s is %s", f.Domain(), snap.Stage))
			return app.printer.Emit(snap, func() error {
				renderSnapshot(app.printer, snap)
				return nil
			})
		},
	}
}

func newDomainsWatchCmd(app *App) *cobra.Command {
	var wf watchFlags
	cmd := &cobra.Command{
		Use:   "watch <domain>",
		Short: "Follow certificate verification until the domain is active or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			f, err := app.flow(c, args[0])
			if err != nil {
				return err
			}
			metrics, err := app.serveMetrics(wf.metricsAddr)
			if err != nil {
				return err
			}
			interval := wf.interval
			if interval <= 0 {
				interval = app.cfg.Settings.PollInterval
			}
			ctx := app.context(cmd)
			message := "Verifying " + f.Domain()
			sp := app.spinner(message)
			sp.Start(ctx)
			snap, res, err := f.Watch(ctx, verification.WatchOptions{
				Interval:    interval,
				MaxDuration: wf.timeout,
				Store:       app.cacheStore(),
				Metrics:     metrics,
				OnUpdate: func(s verification.Snapshot) {
					sp.Update(fmt.Sprintf("%s (%s)", message, s.Stage))
				},
			})
			switch {
			case err != nil:
				sp.Fail(message + " failed")
				return err
			case res.GaveUp:
				sp.Stop(fmt.Sprintf("%s still %s", f.Domain(), snap.Stage))
				app.printer.Warn("stopped watching after %s; last stage %s", wf.timeout, snap.Stage)
			case res.Failed:
				sp.Fail(fmt.Sprintf("%s is %s", f.Domain(), snap.Stage))
				if d := snap.Domain; d.LastError != nil && *d.LastError != "" {
					return fmt.Errorf("%w: domain %s verification %s: %s", ErrFailedState, f.Domain(), snap.Stage, *d.LastError)
				}
				return fmt.Errorf("%w: domain %s verification %s", ErrFailedState, f.Domain(), snap.Stage)
			default:
				sp.Stop(fmt.Sprintf("%s is %s", f.Domain(), snap.Stage))
			}
			return app.printer.Emit(snap, func() error {
				renderSnapshot(app.printer, snap)
				return nil
			})
		},
	}
	wf.register(cmd, 10*time.Minute)
	return cmd
}

func renderSnapshot(p *ui.Printer, s verification.Snapshot) {
	d := s.Domain
	expires := "-"
	if d.ExpirationTime != nil {
		expires = d.ExpirationTime.String()
	}
	actions := make([]string, 0, 2)
	for _, a := range s.Actions() {
		actions = append(actions, string(a))
	}
	fields := [][2]string{
		{"Domain", d.Domain},
		{"Status", p.Styles.Tone(domainTone(d.Status), string(d.Status))},
		{"Stage", p.Styles.Tone(stageTone(s.Stage), string(s.Stage))},
		{"Method", ui.Dash(d.VerificationMethod)},
		{"Wildcard", yesNo(d.IsWildcard)},
		{"Expires", expires},
	}
	if s.Order != nil {
		fields = append(fields, [2]string{"Order", p.Styles.Tone(orderTone(s.Order.Status), string(s.Order.Status))})
	}
	fields = append(fields, [2]string{"Next", ui.Dash(strings.Join(actions, ", "))})
	p.Fields(fields)

	if d.LastError != nil && *d.LastError != "" {
		p.Warn("last error: %s", *d.LastError)
	}
	if s.Order != nil && s.Order.Error != nil {
		p.Warn("order error: %s", *s.Order.Error)
	}
	if s.Challenge != nil && len(s.Challenge.TXTRecords) > 0 {
		p.Line("")
		renderChallenge(p, *s.Challenge)
	}
}

func renderChallenge(p *ui.Printer, ch client.DomainChallenge) {
	rows := make([][]string, 0, len(ch.TXTRecords))
	for _, r := range ch.TXTRecords {
		rows = append(rows, []string{"TXT", r.Name, r.Value})
	}
	p.Table([]string{"TYPE", "NAME", "VALUE"}, rows, "No challenge records yet")
}
