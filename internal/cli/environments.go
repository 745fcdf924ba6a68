package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
)

// protectedEnvironment can never be deleted from the CLI.
const protectedEnvironment = "production"

func newEnvironmentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environments",
		Aliases: []string{"env", "envs"},
		Short:   "Manage project environments and their variables",
	}
	cmd.AddCommand(
		newEnvironmentsListCmd(app),
		newEnvironmentsCreateCmd(app),
		newEnvironmentsDeleteCmd(app),
		newEnvVarsCmd(app),
	)
	return cmd
}

func newEnvironmentsListCmd(app *App) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, project)
			if err != nil {
				return err
			}
			envs, err := c.Environments.List(ctx, p.ID)
			if err != nil {
				return err
			}
			return app.printer.Emit(envs, func() error {
				rows := make([][]string, 0, len(envs))
				for _, e := range envs {
					current := "-"
					if e.CurrentDeploymentID != nil {
						current = strconv.Itoa(*e.CurrentDeploymentID)
					}
					rows = append(rows, []string{strconv.Itoa(e.ID), e.Name, e.Slug, ui.Deref(e.Branch), ui.Dash(e.MainURL), current})
				}
				app.printer.Table([]string{"ID", "NAME", "SLUG", "BRANCH", "URL", "DEPLOYMENT"}, rows, "No environments found")
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	return cmd
}

func newEnvironmentsCreateCmd(app *App) *cobra.Command {
	var project, name, branch string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return validationf("--name is required")
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, project)
			if err != nil {
				return err
			}
			if branch == "" {
				branch = p.MainBranch
			}
			env, err := c.Environments.Create(ctx, p.ID, client.CreateEnvironmentInput{Name: name, Branch: branch})
			if err != nil {
				return err
			}
			return app.printer.Emit(env, func() error {
				app.printer.Success("environment created: %s (%d)", env.Name, env.ID)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().StringVar(&name, "name", "", "Environment name")
	cmd.Flags().StringVar(&branch, "branch", "", "Git branch to deploy (defaults to the project's main branch)")
	return cmd
}

func newEnvironmentsDeleteCmd(app *App) *cobra.Command {
	var (
		project string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "delete <environment>",
		Short: "Delete an environment",
		Long:  `Deletes an environment by id or slug. The production environment cannot be deleted, with or without --force.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.TrimSpace(args[0])
			if ref == protectedEnvironment {
				return validationf("the %s environment cannot be deleted", protectedEnvironment)
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, project)
			if err != nil {
				return err
			}
			env, err := c.Environments.Get(ctx, p.ID, ref)
			if err != nil {
				return err
			}
			if env.Name == protectedEnvironment {
				return validationf("the %s environment cannot be deleted", protectedEnvironment)
			}
			if !force {
				ok, err := app.confirm(fmt.Sprintf("Delete environment %s of %s?", env.Name, p.Slug))
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := c.Environments.Delete(ctx, p.ID, strconv.Itoa(env.ID)); err != nil {
				return err
			}
			app.printer.Success("environment deleted: %s", env.Name)
			return nil
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newEnvVarsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Manage environment variables",
	}

	var (
		project string
		envRef  string
		reveal  bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List variables, optionally for one environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, project)
			if err != nil {
				return err
			}
			vars, err := c.EnvVars.List(ctx, p.ID)
			if err != nil {
				return err
			}
			if envRef != "" {
				env, err := c.Environments.Get(ctx, p.ID, envRef)
				if err != nil {
					return err
				}
				filtered := vars[:0]
				for _, v := range vars {
					if v.AppliesTo(env.ID) {
						filtered = append(filtered, v)
					}
				}
				vars = filtered
			}
			return app.printer.Emit(vars, func() error {
				rows := make([][]string, 0, len(vars))
				for _, v := range vars {
					names := make([]string, 0, len(v.Environments))
					for _, e := range v.Environments {
						names = append(names, e.Name)
					}
					value := "********"
					if reveal {
						value = v.Value
					}
					rows = append(rows, []string{strconv.Itoa(v.ID), v.Key, value, ui.Dash(strings.Join(names, ", "))})
				}
				app.printer.Table([]string{"ID", "KEY", "VALUE", "ENVIRONMENTS"}, rows, "No variables found")
				return nil
			})
		},
	}
	projectFlag(list, &project)
	list.Flags().StringVarP(&envRef, "environment", "e", "", "Only variables attached to this environment")
	list.Flags().BoolVar(&reveal, "reveal", false, "Show values instead of masking them")

	var getProject, getEnv string
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, getProject)
			if err != nil {
				return err
			}
			envID := 0
			if getEnv != "" {
				env, err := c.Environments.Get(ctx, p.ID, getEnv)
				if err != nil {
					return err
				}
				envID = env.ID
			}
			value, err := c.EnvVars.Value(ctx, p.ID, args[0], envID)
			if err != nil {
				return err
			}
			return app.printer.Emit(map[string]string{"key": args[0], "value": value}, func() error {
				fmt.Fprintln(app.Out, value)
				return nil
			})
		},
	}
	projectFlag(get, &getProject)
	get.Flags().StringVarP(&getEnv, "environment", "e", "", "Environment id or slug")

	var (
		setProject string
		setEnvs    []string
	)
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Create or update a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return validationf("variable key is empty")
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, setProject)
			if err != nil {
				return err
			}
			envIDs, err := environmentIDs(ctx, c, p.ID, setEnvs)
			if err != nil {
				return err
			}
			existing, err := findVar(ctx, c, p.ID, key)
			if err != nil {
				return err
			}
			input := client.EnvVarInput{Key: key, Value: args[1], EnvironmentIDs: envIDs}
			var saved client.EnvVar
			if existing != nil {
				saved, err = c.EnvVars.Update(ctx, p.ID, existing.ID, input)
			} else {
				saved, err = c.EnvVars.Create(ctx, p.ID, input)
			}
			if err != nil {
				return err
			}
			return app.printer.Emit(saved, func() error {
				app.printer.Success("%s saved for %d environment(s)", key, len(envIDs))
				return nil
			})
		},
	}
	projectFlag(set, &setProject)
	set.Flags().StringSliceVarP(&setEnvs, "environment", "e", nil, "Environment id or slug (repeatable; defaults to all)")

	var (
		delProject string
		yes        bool
	)
	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			p, err := app.resolveProject(ctx, c, delProject)
			if err != nil {
				return err
			}
			existing, err := findVar(ctx, c, p.ID, args[0])
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("variable %s not found in %s", args[0], p.Slug)
			}
			if !yes {
				ok, err := app.confirm(fmt.Sprintf("Delete variable %s from %s?", existing.Key, p.Slug))
				if err != nil {
					return err
				}
				if !ok {
					app.printer.Line("Aborted")
					return nil
				}
			}
			if err := c.EnvVars.Delete(ctx, p.ID, existing.ID); err != nil {
				return err
			}
			app.printer.Success("variable deleted: %s", existing.Key)
			return nil
		},
	}
	projectFlag(del, &delProject)
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(list, get, set, del)
	return cmd
}

func environmentIDs(ctx context.Context, c *client.Client, projectID int, refs []string) ([]int, error) {
	if len(refs) == 0 {
		envs, err := c.Environments.List(ctx, projectID)
		if err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(envs))
		for _, e := range envs {
			ids = append(ids, e.ID)
		}
		return ids, nil
	}
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		env, err := c.Environments.Get(ctx, projectID, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, env.ID)
	}
	return ids, nil
}

func findVar(ctx context.Context, c *client.Client, projectID int, key string) (*client.EnvVar, error) {
	vars, err := c.EnvVars.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range vars {
		if vars[i].Key == key {
			return &vars[i], nil
		}
	}
	return nil, nil
}
