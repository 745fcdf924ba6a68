package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Inspect projects",
	}

	var page client.Page
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			projects, err := c.Projects.List(app.context(cmd), page)
			if err != nil {
				return err
			}
			return app.printer.Emit(projects, func() error {
				rows := make([][]string, 0, len(projects.Projects))
				for _, p := range projects.Projects {
					last := "-"
					if p.LastDeployment != nil {
						last = p.LastDeployment.String()
					}
					rows = append(rows, []string{strconv.Itoa(p.ID), p.Slug, p.Name, ui.Dash(p.MainBranch), last})
				}
				app.printer.Table([]string{"ID", "SLUG", "NAME", "BRANCH", "LAST DEPLOYMENT"}, rows, "No projects found")
				return nil
			})
		},
	}
	list.Flags().IntVar(&page.Page, "page", 0, "Page number")
	list.Flags().IntVar(&page.PerPage, "per-page", 0, "Projects per page")

	show := &cobra.Command{
		Use:   "show <project>",
		Short: "Show a project by slug or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			p, err := app.resolveProject(app.context(cmd), c, args[0])
			if err != nil {
				return err
			}
			return app.printer.Emit(p, func() error {
				repo := "-"
				if p.RepoOwner != nil && p.RepoName != nil {
					repo = *p.RepoOwner + "/" + *p.RepoName
				}
				app.printer.Fields([][2]string{
					{"ID", strconv.Itoa(p.ID)},
					{"Slug", p.Slug},
					{"Name", p.Name},
					{"Repository", repo},
					{"Branch", ui.Dash(p.MainBranch)},
					{"Directory", ui.Dash(p.Directory)},
					{"Preset", ui.Deref(p.Preset)},
					{"Preview envs", yesNo(p.EnablePreviewEnvironments)},
					{"Created", p.CreatedAt.String()},
				})
				return nil
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
