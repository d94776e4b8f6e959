package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the records of the last scrape once",
	Long: `Sweeps stale dedup state, loads the records file written by the
extractor, and dispatches a notification batch if any course group
has free seats.`,
	RunE: runOnce,
}

var (
	watchSchedule string
	watchFollow   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process scrapes on a cron schedule until interrupted",
	Long: `Runs one cycle immediately and then on every tick of the schedule
(robfig/cron syntax, e.g. "@every 10m" or "*/15 8-20 * * 1-5").
A tick that fires while a cycle is still running is skipped.

With --follow, cycles are triggered by changes to the records file
instead of the clock.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "",
		"cron expression (overrides watch.schedule from config)")
	watchCmd.Flags().BoolVar(&watchFollow, "follow", false,
		"run a cycle whenever the records file changes instead of on a schedule")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.runner.RunOnce(ctx)
	if err != nil {
		return err
	}

	if !rep.Sent {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %d records, nothing to report", rep.Records)))
		return nil
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("  %d records, %d with free seats", rep.Records, len(rep.Batch))))
	for _, o := range a.dispatcher.Outcomes() {
		if o.OK {
			fmt.Printf("  %-16s %s\n", o.Channel, successStyle.Render("sent"))
		} else {
			fmt.Printf("  %-16s %s\n", o.Channel, failStyle.Render("failed (see log)"))
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	expr := a.cfg.Watch.Schedule
	if watchSchedule != "" {
		expr = watchSchedule
	}

	fmt.Println(headerStyle.Render("seatwatch watch"))
	if watchFollow {
		fmt.Printf("  Trigger    : records file changes\n")
	} else {
		fmt.Printf("  Schedule   : %s\n", expr)
	}
	fmt.Printf("  Records    : %s\n", a.cfg.Scraper.RecordsFile)
	fmt.Printf("  Channels   : %v (enabled: %t)\n", a.dispatcher.Channels(), a.dispatcher.Enabled())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop gracefully.")

	if watchFollow {
		if _, err := a.runner.RunOnce(ctx); err != nil {
			slog.Warn("initial cycle failed", "error", err)
		}
		return a.runner.Follow(ctx, a.cfg.Scraper.RecordsFile)
	}
	return a.runner.Watch(ctx, expr)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
