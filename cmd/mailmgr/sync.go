package main

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-manager/internal/sync"
)

func newSyncCmd(app *appContext) *cobra.Command {
	var (
		quiet bool
		days  int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch, classify, and store new messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			s, err := app.openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			gateway, err := app.openGateway(cfg)
			if err != nil {
				return err
			}

			engine := app.buildEngine(cfg)
			orchestrator := sync.NewOrchestrator(
				gateway, s, engine, cfg.Sync, slog.Default())

			events := orchestrator.Run(cmd.Context(), sync.Request{
				Days:       days,
				ForceFirst: full,
			})
			return consumeEvents(events, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress the progress bar")
	cmd.Flags().IntVarP(&days, "days", "d", 0,
		"widen the look-back window to at least this many days")
	cmd.Flags().BoolVar(&full, "full", false,
		"use the first-sync profile even when earlier syncs exist")
	return cmd
}

// consumeEvents drives the blocking event stream, rendering a progress
// bar unless quiet.
func consumeEvents(events <-chan sync.Event, quiet bool) error {
	var bar *pterm.ProgressbarPrinter

	for ev := range events {
		switch ev.Kind {
		case sync.EventConnecting:
			if !quiet {
				pterm.Info.Println("Connecting to mailbox...")
			}

		case sync.EventFetching:
			if !quiet && ev.Total > 0 {
				bar, _ = pterm.DefaultProgressbar.
					WithTotal(ev.Total).
					WithTitle("Syncing messages").
					Start()
			}

		case sync.EventProgress:
			if bar != nil {
				bar.Increment()
				if ev.Subject != "" {
					bar.UpdateTitle("Syncing: " + truncateCell(ev.Subject, 40))
				}
			}

		case sync.EventCompleted:
			if bar != nil {
				if bar.Current < bar.Total {
					bar.Current = bar.Total
				}
				_, _ = bar.Stop()
			}
			if !quiet {
				pterm.Success.Printf("Synced %d new messages\n", ev.Count)
			}

		case sync.EventFailed:
			if bar != nil {
				_, _ = bar.Stop()
			}
			if !quiet {
				pterm.Error.Printf("Sync failed: %v\n", ev.Err)
			}
			return fmt.Errorf("%s: %w", ev.Message, ev.Err)
		}
	}

	return nil
}
