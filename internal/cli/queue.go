package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/console"
	"github.com/divviup/divviup-console/internal/metrics"
	"github.com/divviup/divviup-console/internal/models"
	"github.com/divviup/divviup-console/internal/store"
	"github.com/divviup/divviup-console/internal/telegram"
)

func (a *app) queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"jobs"},
		Short:   "Inspect the background job queue (admin only)",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var query models.QueueQuery
			if status != "" {
				parsed, err := models.ParseJobStatus(status)
				if err != nil {
					return err
				}
				query.Status = &parsed
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			jobs, err := c.QueueJobs(cmd.Context(), query)
			if err != nil {
				return err
			}
			return a.print(jobs, func(w io.Writer) error {
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID.String(), job.Type(), job.Version(), string(job.Status),
						strconv.Itoa(job.FailureCount), formatTime(job.UpdatedAt),
					})
				}
				return table(w, []string{"ID", "TYPE", "VERSION", "STATUS", "FAILURES", "UPDATED"}, rows)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only jobs with this status: pending, success or failed")

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			job, err := c.QueueJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(job, func(w io.Writer) error {
				errText := job.Error()
				if errText == "" {
					errText = "-"
				}
				return fields(w,
					"ID", job.ID.String(),
					"Type", job.Type(),
					"Version", job.Version(),
					"Status", string(job.Status),
					"Failures", strconv.Itoa(job.FailureCount),
					"Created", formatTime(job.CreatedAt),
					"Updated", formatTime(job.UpdatedAt),
					"Scheduled", formatOptionalTime(job.ScheduledAt),
					"Error", errText,
				)
			})
		},
	}

	remove := &cobra.Command{
		Use:     "delete <job-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteQueueJob(cmd.Context(), id); err != nil {
				return err
			}
			return a.deleted("job", id.String())
		},
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Report failed jobs to Telegram until interrupted",
		Long: `Poll the job queue and send every newly failed job to the configured
Telegram chat. The chat may also ask for /failed and /job <id>.

Requires notify.telegram.bot_token and notify.telegram.chat_id (or
TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID). Jobs already reported are
remembered in the local key store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := a.startNotifier(cmd.Context(), nil)
			if err != nil {
				return err
			}

			sig := console.WaitForSignal(cmd.Context(), console.SetupSignalHandler())
			if sig != nil {
				a.logger.Info("received signal, stopping", "signal", sig.String())
			}
			return console.ShutdownWithComponents(nil, a.cfg.Console.ShutdownTimeout, components...)
		},
	}

	cmd.AddCommand(list, get, remove, watch)
	return cmd
}

// startNotifier starts the failed-job bot and the pruner that ages out
// its record of reported jobs. The returned components are running and
// must be shut down.
func (a *app) startNotifier(ctx context.Context, m *metrics.Metrics) ([]console.Shutdownable, error) {
	tg := a.cfg.Notify.Telegram
	if !tg.Enabled() {
		return nil, fmt.Errorf("telegram notifications need notify.telegram.bot_token and notify.telegram.chat_id")
	}
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	keys, err := a.keystore()
	if err != nil {
		return nil, err
	}
	api, err := telegram.NewTGBotAPIClient(tg.BotToken)
	if err != nil {
		return nil, err
	}

	bot := telegram.NewBot(api, tg.ChatID, c, keys, &telegram.BotOptions{
		PollInterval: a.cfg.Notify.PollInterval,
		Metrics:      m,
		Logger:       a.logger.With("component", "telegram"),
	})
	if err := bot.Start(); err != nil {
		return nil, err
	}

	pruner := store.NewPruner(keys, a.cfg.Notify.Retention, &store.PrunerOptions{
		Logger: a.logger.With("component", "pruner"),
	})
	if err := pruner.Start(ctx); err != nil {
		_ = bot.Shutdown(ctx)
		return nil, err
	}
	return []console.Shutdownable{bot, pruner}, nil
}
