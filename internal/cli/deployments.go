package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gotempsh/temps-cli/internal/ui"
	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

const deployWaitTimeout = 300 * time.Second

func newDeploymentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployments",
		Aliases: []string{"deployment", "deploys"},
		Short:   "Inspect and control deployments",
	}
	cmd.AddCommand(
		newDeploymentsListCmd(app),
		newDeploymentsShowCmd(app),
		newDeploymentsLastCmd(app),
		newDeploymentsWatchCmd(app),
		newDeploymentStateCmd(app, "pause", "Pause a deployment", (*client.DeploymentsService).Pause),
		newDeploymentStateCmd(app, "resume", "Resume a paused deployment", (*client.DeploymentsService).Resume),
		newDeploymentStateCmd(app, "cancel", "Cancel a running deployment", (*client.DeploymentsService).Cancel),
		newDeploymentsRollbackCmd(app),
		newDeploymentsLogsCmd(app),
		newDeployImageCmd(app),
	)
	return cmd
}

// deploymentTarget resolves the -p project and the positional deployment id.
func (a *App) deploymentTarget(cmd *cobra.Command, project, rawID string) (*client.Client, client.Project, int, error) {
	id, err := parseID(rawID, "deployment")
	if err != nil {
		return nil, client.Project{}, 0, err
	}
	c, err := a.client()
	if err != nil {
		return nil, client.Project{}, 0, err
	}
	p, err := a.resolveProject(a.context(cmd), c, project)
	if err != nil {
		return nil, client.Project{}, 0, err
	}
	return c, p, id, nil
}

func newDeploymentsListCmd(app *App) *cobra.Command {
	var (
		project string
		page    client.Page
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments of a project",
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
			list, err := c.Deployments.List(ctx, p.ID, page)
			if err != nil {
				return err
			}
			return app.printer.Emit(list, func() error {
				rows := make([][]string, 0, len(list.Deployments))
				for _, d := range list.Deployments {
					current := ""
					if d.IsCurrent {
						current = "*"
					}
					rows = append(rows, []string{
						strconv.Itoa(d.ID) + current,
						d.Environment.Name,
						app.printer.Styles.Tone(deploymentTone(d.Status), string(d.Status)),
						ui.Deref(d.Branch),
						shortCommit(d.CommitHash),
						d.CreatedAt.String(),
					})
				}
				app.printer.Table([]string{"ID", "ENVIRONMENT", "STATUS", "BRANCH", "COMMIT", "CREATED"}, rows, "No deployments found")
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().IntVar(&page.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&page.PerPage, "per-page", 0, "Deployments per page")
	return cmd
}

type deploymentView struct {
	client.Deployment
	Jobs []client.DeploymentJob `json:"jobs,omitempty"`
}

func deploymentKey(projectID, deploymentID int) string {
	return poll.Key("deployment", strconv.Itoa(projectID), strconv.Itoa(deploymentID))
}

func newDeploymentsShowCmd(app *App) *cobra.Command {
	var (
		project   string
		withJobs  bool
		fromCache bool
	)
	cmd := &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, p, id, err := app.deploymentTarget(cmd, project, args[0])
			if err != nil {
				return err
			}
			var (
				view deploymentView
				hit  bool
			)
			if fromCache {
				view.Deployment, hit = cached[client.Deployment](app.context(cmd), app, deploymentKey(p.ID, id))
			}
			g, ctx := errgroup.WithContext(app.context(cmd))
			if !hit {
				g.Go(func() error {
					d, err := c.Deployments.Get(ctx, p.ID, id)
					view.Deployment = d
					return err
				})
			}
			if withJobs {
				g.Go(func() error {
					jobs, err := c.Deployments.Jobs(ctx, p.ID, id)
					view.Jobs = jobs
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return app.printer.Emit(view, func() error {
				renderDeployment(app.printer, view.Deployment)
				if withJobs {
					app.printer.Line("")
					renderJobs(app.printer, view.Jobs)
				}
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().BoolVar(&withJobs, "jobs", false, "Include pipeline jobs")
	cacheFlag(cmd, &fromCache)
	return cmd
}

func newDeploymentsLastCmd(app *App) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent deployment of a project",
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
			d, err := c.Deployments.Last(ctx, p.ID)
			if err != nil {
				return err
			}
			return app.printer.Emit(d, func() error {
				renderDeployment(app.printer, d)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	return cmd
}

func newDeploymentsWatchCmd(app *App) *cobra.Command {
	var (
		project         string
		awaitScreenshot bool
		wf              watchFlags
	)
	cmd := &cobra.Command{
		Use:   "watch <deployment-id>",
		Short: "Follow a deployment until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, p, id, err := app.deploymentTarget(cmd, project, args[0])
			if err != nil {
				return err
			}
			d, _, err := app.watchDeployment(cmd, wf, c, p.ID, id, awaitScreenshot)
			if err != nil {
				return err
			}
			return app.printer.Emit(d, func() error {
				renderDeployment(app.printer, d)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().BoolVar(&awaitScreenshot, "await-screenshot", false, "Keep watching a completed deployment until its screenshot exists")
	wf.register(cmd, 10*time.Minute)
	return cmd
}

func (a *App) watchDeployment(cmd *cobra.Command, wf watchFlags, c *client.Client, projectID, deploymentID int, awaitScreenshot bool) (client.Deployment, poll.Result, error) {
	return watch(a, cmd, wf, watchSpec[client.Deployment]{
		resource: "deployment",
		key:      deploymentKey(projectID, deploymentID),
		message:  fmt.Sprintf("Waiting for deployment %d", deploymentID),
		fetch: func(ctx context.Context) (client.Deployment, error) {
			return c.Deployments.Get(ctx, projectID, deploymentID)
		},
		classify: client.DeploymentDecision(awaitScreenshot),
		describe: func(d client.Deployment) string {
			return fmt.Sprintf("Deployment %d %s", d.ID, d.Status)
		},
	})
}

type stateChangeFunc func(*client.DeploymentsService, context.Context, int, int) (client.StateChange, error)

func newDeploymentStateCmd(app *App, use, short string, change stateChangeFunc) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   use + " <deployment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, p, id, err := app.deploymentTarget(cmd, project, args[0])
			if err != nil {
				return err
			}
			res, err := change(c.Deployments, app.context(cmd), p.ID, id)
			if err != nil {
				return err
			}
			return app.printer.Emit(res, func() error {
				msg := res.Message
				if msg == "" {
					msg = fmt.Sprintf("deployment %d is now %s", res.ID, res.State)
				}
				app.printer.Success("%s", msg)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	return cmd
}

func newDeploymentsRollbackCmd(app *App) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "rollback <deployment-id>",
		Short: "Promote an earlier deployment back to current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, p, id, err := app.deploymentTarget(cmd, project, args[0])
			if err != nil {
				return err
			}
			d, err := c.Deployments.Rollback(app.context(cmd), p.ID, id)
			if err != nil {
				return err
			}
			return app.printer.Emit(d, func() error {
				app.printer.Success("rolled back to deployment %d", d.ID)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	return cmd
}

func newDeploymentsLogsCmd(app *App) *cobra.Command {
	var (
		project string
		follow  bool
	)
	cmd := &cobra.Command{
		Use:   "logs <deployment-id> <job-id>",
		Short: "Print the log of a deployment job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, p, id, err := app.deploymentTarget(cmd, project, args[0])
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[1])
			if jobID == "" {
				return validationf("job id is empty")
			}
			ctx := app.context(cmd)
			if follow {
				return c.Deployments.TailJobLogs(ctx, p.ID, id, jobID, func(line string) error {
					_, err := fmt.Fprintln(app.Out, line)
					return err
				})
			}
			logs, err := c.Deployments.JobLogs(ctx, p.ID, id, jobID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(app.Out, logs)
			return err
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines until the job ends")
	return cmd
}

func newDeployImageCmd(app *App) *cobra.Command {
	var (
		project  string
		envRef   string
		image    string
		metadata string
		wait     bool
		wf       watchFlags
	)
	cmd := &cobra.Command{
		Use:   "deploy-image",
		Short: "Deploy a pre-built container image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := normalizeImage(image)
			if err != nil {
				return err
			}
			input := client.DeployImageInput{ImageRef: ref}
			if metadata != "" {
				if !json.Valid([]byte(metadata)) {
					return validationf("--metadata is not valid JSON")
				}
				input.Metadata = json.RawMessage(metadata)
			}
			if strings.TrimSpace(envRef) == "" {
				return validationf("--environment is required")
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
			env, err := c.Environments.Get(ctx, p.ID, envRef)
			if err != nil {
				return err
			}
			started, err := c.Deployments.DeployImage(ctx, p.ID, env.ID, input)
			if err != nil {
				return err
			}
			if !wait {
				return app.printer.Emit(started, func() error {
					app.printer.Success("deployment %d of %s to %s: %s", started.ID, ref, env.Name, started.State)
					app.printer.Line("Follow it with: temps-cli deployments watch -p %s %d", p.Slug, started.ID)
					return nil
				})
			}
			d, res, err := app.watchDeployment(cmd, wf, c, p.ID, started.ID, false)
			if err != nil {
				return err
			}
			return app.printer.Emit(d, func() error {
				if res.GaveUp {
					app.printer.Line("deployment %d of %s to %s is still %s", d.ID, ref, env.Name, d.Status)
					return nil
				}
				app.printer.Success("deployment %d of %s to %s: %s", d.ID, ref, env.Name, d.Status)
				return nil
			})
		},
	}
	projectFlag(cmd, &project)
	cmd.Flags().StringVarP(&envRef, "environment", "e", "", "Environment id or slug")
	cmd.Flags().StringVar(&image, "image", "", "Image reference, e.g. ghcr.io/acme/web:1.2.0")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object attached to the deployment")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the deployment to settle")
	wf.register(cmd, deployWaitTimeout)
	return cmd
}

// normalizeImage validates an image reference and expands it to its
// fully-qualified form, e.g. "nginx" becomes "docker.io/library/nginx".
func normalizeImage(image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", validationf("--image is required")
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", validationf("invalid image reference %q: %v", image, err)
	}
	return named.String(), nil
}

func renderDeployment(p *ui.Printer, d client.Deployment) {
	finished := "-"
	if d.FinishedAt != nil {
		finished = d.FinishedAt.String()
	}
	p.Fields([][2]string{
		{"ID", strconv.Itoa(d.ID)},
		{"Status", p.Styles.Tone(deploymentTone(d.Status), string(d.Status))},
		{"Environment", d.Environment.Name},
		{"URL", ui.Dash(d.URL)},
		{"Branch", ui.Deref(d.Branch)},
		{"Commit", shortCommit(d.CommitHash)},
		{"Message", ui.Deref(d.CommitMessage)},
		{"Current", yesNo(d.IsCurrent)},
		{"Screenshot", ui.Deref(d.ScreenshotLocation)},
		{"Created", d.CreatedAt.String()},
		{"Finished", finished},
	})
	if d.CancelledReason != nil {
		p.Warn("cancelled: %s", *d.CancelledReason)
	}
}

func renderJobs(p *ui.Printer, jobs []client.DeploymentJob) {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.JobID,
			j.Name,
			p.Styles.Tone(jobTone(j.Status), string(j.Status)),
			ui.Deref(j.ErrorMessage),
		})
	}
	p.Table([]string{"JOB", "NAME", "STATUS", "ERROR"}, rows, "No jobs")
}

func shortCommit(hash *string) string {
	if hash == nil || *hash == "" {
		return "-"
	}
	if len(*hash) > 7 {
		return (*hash)[:7]
	}
	return *hash
}
