// Command mailmgr syncs, classifies, and queries a mailbox from the
// terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-manager/internal/model"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:   "mailmgr",
		Short: "Sync and classify mailbox messages locally",
		Long: "mailmgr pulls recent messages from an IMAP mailbox, classifies them\n" +
			"with privacy-aware local or cloud models, and stores the results in a\n" +
			"local SQLite database.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		slog.SetDefault(newLogger(logLevel))
	}

	app := &appContext{configPath: &configPath}

	rootCmd.AddCommand(
		newSyncCmd(app),
		newListCmd(app),
		newStatsCmd(app),
		newSessionsCmd(app),
		newHeadersCmd(app),
		newReadCmd(app),
		newArchiveCmd(app),
		newSetupCmd(app),
		newValidateCmd(app),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelWarn)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
