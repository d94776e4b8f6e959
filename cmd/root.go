package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
	logDir  string

	closeLog = func() {}
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED"))

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var failStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "seatwatch",
	Short: "Notify students when seats free up in course groups",
	Long: `seatwatch turns scraped course-group records into notifications.
Records with free seats are matched to their recipients and handed to
the configured channels; repeat mails are throttled per time window.

Get started:
  seatwatch doctor     Verify recipients, channels, and dedup store
  seatwatch run        Process the last scrape once
  seatwatch watch      Process scrapes on a cron schedule
  seatwatch channels   List notification channels`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.seatwatch/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"also write logs to this directory for later inspection")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		runCmd,
		watchCmd,
		dedupCmd,
		configCmd,
		channelsCmd,
		doctorCmd,
	)
}

// setupLogger installs the default slog handler. With --log-dir, output is
// copied into a timestamped run log and a rolling seatwatch.log.
func setupLogger() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("creating log dir %s: %w", logDir, err)
		}
		ts := time.Now().UTC().Format("20060102-150405")
		runFile, err := os.OpenFile(filepath.Join(logDir, fmt.Sprintf("seatwatch-%s.log", ts)),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening run log file: %w", err)
		}
		latestFile, err := os.OpenFile(filepath.Join(logDir, "seatwatch.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = runFile.Close()
			return fmt.Errorf("opening latest log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, runFile, latestFile)
		closeLog = func() {
			_ = latestFile.Close()
			_ = runFile.Close()
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Verbose logging enabled")
	return nil
}
