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

func newBackupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backups",
		Aliases: []string{"backup"},
		Short:   "Run and inspect backups",
	}
	cmd.AddCommand(newBackupsShowCmd(app), newBackupsRunCmd(app))
	return cmd
}

func backupKey(id int) string { return poll.Key("backup", strconv.Itoa(id)) }

func newBackupsShowCmd(app *App) *cobra.Command {
	var fromCache bool
	cmd := &cobra.Command{
		Use:   "show <backup-id>",
		Short: "Show a backup run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "backup")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			ctx := app.context(cmd)
			b, hit := client.Backup{}, false
			if fromCache {
				b, hit = cached[client.Backup](ctx, app, backupKey(id))
			}
			if !hit {
				if b, err = c.Backups.Get(ctx, id); err != nil {
					return err
				}
			}
			return app.printer.Emit(b, func() error {
				renderBackup(app.printer, b)
				return nil
			})
		},
	}
	cacheFlag(cmd, &fromCache)
	return cmd
}

func newBackupsRunCmd(app *App) *cobra.Command {
	var (
		backupType string
		wait       bool
		wf         watchFlags
	)
	cmd := &cobra.Command{
		Use:   "run <s3-source-id>",
		Short: "Start a backup of an S3 source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := parseID(args[0], "s3 source")
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			b, err := c.Backups.Run(app.context(cmd), sourceID, strings.TrimSpace(backupType))
			if err != nil {
				return err
			}
			if wait && !b.State.Terminal() {
				id := b.ID
				b, _, err = watch(app, cmd, wf, watchSpec[client.Backup]{
					resource: "backup",
					key:      backupKey(id),
					message:  fmt.Sprintf("Waiting for backup %d", id),
					fetch: func(ctx context.Context) (client.Backup, error) {
						return c.Backups.Get(ctx, id)
					},
					classify: client.BackupDecision,
					describe: func(b client.Backup) string {
						return fmt.Sprintf("Backup %d %s", b.ID, b.State)
					},
				})
				if err != nil {
					return err
				}
			}
			return app.printer.Emit(b, func() error {
				renderBackup(app.printer, b)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&backupType, "type", "full", "Backup type")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the backup to finish")
	wf.register(cmd, 30*time.Minute)
	return cmd
}

func renderBackup(p *ui.Printer, b client.Backup) {
	completed := "-"
	if b.CompletedAt != nil {
		completed = b.CompletedAt.String()
	}
	p.Fields([][2]string{
		{"ID", strconv.Itoa(b.ID)},
		{"Name", ui.Dash(b.Name)},
		{"Type", ui.Dash(b.BackupType)},
		{"State", p.Styles.Tone(backupTone(b.State), string(b.State))},
		{"Size", humanBytes(b.SizeBytes)},
		{"Location", ui.Dash(b.S3Location)},
		{"Started", b.StartedAt.String()},
		{"Completed", completed},
	})
	if b.ErrorMessage != nil && *b.ErrorMessage != "" {
		p.Warn("backup error: %s", *b.ErrorMessage)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
