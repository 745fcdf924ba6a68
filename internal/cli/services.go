package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

func newServicesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"service", "svc"},
		Short:   "Manage external services (databases, caches, storage)",
	}
	cmd.AddCommand(
		newServicesListCmd(app),
		newServicesCreateCmd(app),
		newServicesShowCmd(app),
		newServicesRemoveCmd(app),
		newServiceTransitionCmd(app, "start", "Start a stopped service", (*client.ServicesService).Start),
		newServiceTransitionCmd(app, "stop", "Stop a running service", (*client.ServicesService).Stop),
		newServicesTypesCmd(app),
		newServiceProjectsCmd(app),
	)
	return cmd
}

func newServicesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List external services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			services, err := c.Services.List(app.context(cmd))
			if err != nil {
				return err
			}
			return app.printer.Emit(services, func() error {
				rows := make([][]string, 0, len(services))
				for _, s := range services {
					rows = append(rows, []string{
						strconv.Itoa(s.ID),
						s.Name,
						string(s.ServiceType),
						ui.Deref(s.Version),
						app.printer.Styles.Tone(serviceTone(s.Status), string(s.Status)),
					})
				}
				app.printer.Table([]string{"ID", "NAME", "TYPE", "VERSION", "STATUS"}, rows, "No services found")
				return nil
			})
		},
	}
}

func newServicesCreateCmd(app *App) *cobra.Command {
	var (
		name, kind, version string
		params              []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return validationf("--name is required")
			}
			serviceType, err := client.ParseServiceType(kind)
			if err != nil {
				return validationf("--type must be one of %s", joinServiceTypes())
			}
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			svc, err := c.Services.Create(app.context(cmd), client.CreateServiceInput{
				Name:        name,
				ServiceType: serviceType,
				Version:     version,
				Parameters:  parameters,
			})
			if err != nil {
				return err
			}
			return app.printer.Emit(svc, func() error {
				app.printer.Success("service created: %s (%d)", svc.Name, svc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Service name")
	cmd.Flags().StringVar(&kind, "type", "", "Service type: "+joinServiceTypes())
	cmd.Flags().StringVar(&version, "version", "", "Engine version")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Service parameter as key=value (repeatable)")
	return cmd
}

func parseParams(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, validationf("invalid --param %q, expected key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}

func joinServiceTypes() string {
	names := make([]string, 0, len(client.ServiceTypes))
	for _, t := range client.ServiceTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, "|")
}

type serviceView struct {
	client.ServiceDetails
	Projects []client.ProjectLink `json:"projects"`
}

func newServicesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <service-id>",
		Short: "Show a service with its parameters and linked projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "service")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			var view serviceView
			g, ctx := errgroup.WithContext(app.context(cmd))
			g.Go(func() error {
				details, err := c.Services.Get(ctx, id)
				view.ServiceDetails = details
				return err
			})
			g.Go(func() error {
				links, err := c.Services.Projects(ctx, id)
				view.Projects = links
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			return app.printer.Emit(view, func() error {
				s := view.Service
				app.printer.Fields([][2]string{
					{"ID", strconv.Itoa(s.ID)},
					{"Name", s.Name},
					{"Type", string(s.ServiceType)},
					{"Version", ui.Deref(s.Version)},
					{"Status", app.printer.Styles.Tone(serviceTone(s.Status), string(s.Status))},
					{"Created", ui.Dash(s.CreatedAt)},
				})
				if len(view.CurrentParameters) > 0 {
					keys := make([]string, 0, len(view.CurrentParameters))
					for k := range view.CurrentParameters {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					encrypted := map[string]bool{}
					for _, p := range view.Parameters {
						encrypted[p.Name] = p.Encrypted
					}
					rows := make([][]string, 0, len(keys))
					for _, k := range keys {
						value := strings.Trim(string(view.CurrentParameters[k]), `"`)
						if encrypted[k] {
							value = "********"
						}
						rows = append(rows, []string{k, value})
					}
					app.printer.Line("")
					app.printer.Table([]string{"PARAMETER", "VALUE"}, rows, "")
				}
				app.printer.Line("")
				renderLinks(app.printer, view.Projects)
				return nil
			})
		},
	}
}

func newServicesRemoveCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <service-id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a service",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "service")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			if !force {
				details, err := c.Services.Get(ctx, id)
				if err != nil {
					return err
				}
				ok, err := app.confirm(fmt.Sprintf("Delete service %s (%s)? Its data is lost.", details.Service.Name, details.Service.ServiceType))
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := c.Services.Delete(ctx, id); err != nil {
				return err
			}
			app.printer.Success("service %d deleted", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

type serviceTransition func(*client.ServicesService, context.Context, int) (client.ExternalService, error)

func newServiceTransitionCmd(app *App, use, short string, transition serviceTransition) *cobra.Command {
	var (
		wait bool
		wf   watchFlags
	)
	cmd := &cobra.Command{
		Use:   use + " <service-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "service")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			svc, err := transition(c.Services, app.context(cmd), id)
			if err != nil {
				return err
			}
			if wait {
				details, _, err := watch(app, cmd, wf, watchSpec[client.ServiceDetails]{
					resource: "service",
					key:      poll.Key("service", strconv.Itoa(id)),
					message:  fmt.Sprintf("Waiting for service %s", svc.Name),
					fetch: func(ctx context.Context) (client.ServiceDetails, error) {
						return c.Services.Get(ctx, id)
					},
					classify: client.ServiceDecision,
					describe: func(d client.ServiceDetails) string {
						return fmt.Sprintf("Service %s %s", d.Service.Name, d.Service.Status)
					},
				})
				if err != nil {
					return err
				}
				svc = details.Service
			}
			return app.printer.Emit(svc, func() error {
				app.printer.Success("service %s is %s", svc.Name, app.printer.Styles.Tone(serviceTone(svc.Status), string(svc.Status)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the service settles")
	wf.register(cmd, 5*time.Minute)
	return cmd
}

func newServicesTypesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "types [type]",
		Short: "List service types, or the parameters of one type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			if len(args) == 0 {
				types, err := c.Services.Types(ctx)
				if err != nil {
					return err
				}
				return app.printer.Emit(types, func() error {
					rows := make([][]string, 0, len(types))
					for _, t := range types {
						rows = append(rows, []string{string(t)})
					}
					app.printer.Table([]string{"TYPE"}, rows, "No service types available")
					return nil
				})
			}
			serviceType, err := client.ParseServiceType(args[0])
			if err != nil {
				return validationf("unknown service type %q, expected one of %s", args[0], joinServiceTypes())
			}
			info, err := c.Services.TypeParameters(ctx, serviceType)
			if err != nil {
				return err
			}
			return app.printer.Emit(info, func() error {
				rows := make([][]string, 0, len(info.Parameters))
				for _, p := range info.Parameters {
					rows = append(rows, []string{p.Name, yesNo(p.Required), ui.Deref(p.DefaultValue), ui.Dash(p.Description)})
				}
				app.printer.Table([]string{"PARAMETER", "REQUIRED", "DEFAULT", "DESCRIPTION"}, rows, "No parameters")
				return nil
			})
		},
	}
}

func newServiceProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects <service-id>",
		Short: "List the projects linked to a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "service")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			links, err := c.Services.Projects(app.context(cmd), id)
			if err != nil {
				return err
			}
			return app.printer.Emit(links, func() error {
				renderLinks(app.printer, links)
				return nil
			})
		},
	}

	link := &cobra.Command{
		Use:   "link <service-id> <project>",
		Short: "Link a service to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, id, p, err := app.serviceAndProject(cmd, args)
			if err != nil {
				return err
			}
			l, err := c.Services.Link(app.context(cmd), id, p.ID)
			if err != nil {
				return err
			}
			return app.printer.Emit(l, func() error {
				app.printer.Success("service %d linked to %s", id, p.Slug)
				return nil
			})
		},
	}
	unlink := &cobra.Command{
		Use:   "unlink <service-id> <project>",
		Short: "Unlink a service from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, id, p, err := app.serviceAndProject(cmd, args)
			if err != nil {
				return err
			}
			if err := c.Services.Unlink(app.context(cmd), id, p.ID); err != nil {
				return err
			}
			app.printer.Success("service %d unlinked from %s", id, p.Slug)
			return nil
		},
	}
	cmd.AddCommand(link, unlink)
	return cmd
}

func (a *App) serviceAndProject(cmd *cobra.Command, args []string) (*client.Client, int, client.Project, error) {
	id, err := parseID(args[0], "service")
	if err != nil {
		return nil, 0, client.Project{}, err
	}
	c, err := a.client()
	if err != nil {
		return nil, 0, client.Project{}, err
	}
	p, err := a.resolveProject(a.context(cmd), c, args[1])
	if err != nil {
		return nil, 0, client.Project{}, err
	}
	return c, id, p, nil
}

func renderLinks(p *ui.Printer, links []client.ProjectLink) {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{strconv.Itoa(l.ID), strconv.Itoa(l.ProjectID)})
	}
	p.Table([]string{"LINK", "PROJECT"}, rows, "No linked projects")
}
