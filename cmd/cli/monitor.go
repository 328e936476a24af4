package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	monitorSchedule string
	monitorDaemon   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the detectors for every owner",
	Long: `Runs the budget, inactivity and event detectors once for every owner and
prints the summary. With --schedule it keeps running on that cron schedule
until interrupted; --daemon does the same with automation.schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !monitorDaemon && monitorSchedule == "" {
			summaries, err := a.monitoring.RunAll(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		spec := monitorSchedule
		if spec == "" {
			spec = a.cfg.Automation.Schedule
		}
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddFunc(spec, func() {
			if _, err := a.monitoring.RunAll(ctx); err != nil {
				logrus.Errorf("scheduled monitoring failed: %v", err)
			}
		}); err != nil {
			return err
		}
		logrus.Infof("monitoring scheduled with %q", spec)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		logrus.Info("monitor stopped")
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorDaemon, "daemon", false, "keep running on automation.schedule")
	monitorCmd.Flags().StringVar(&monitorSchedule, "schedule", "", "cron expression, overrides automation.schedule")
	rootCmd.AddCommand(monitorCmd)
}
