package main

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-manager/internal/store"
)

func newReadCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			s, err := app.openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			subject, err := markRead(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			pterm.Success.Printf("Marked read: %s\n", truncateCell(subject, 60))
			return nil
		},
	}
}

func newArchiveCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Hide a message from default listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			s, err := app.openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			subject, err := archiveEmail(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			pterm.Success.Printf("Archived: %s\n", truncateCell(subject, 60))
			return nil
		},
	}
}

// markRead flags the message read and returns its subject for the
// confirmation line.
func markRead(ctx context.Context, s store.Store, id string) (string, error) {
	email, err := s.GetEmailByID(ctx, id)
	if err != nil {
		return "", err
	}
	if email == nil {
		return "", fmt.Errorf("no message with id %q", id)
	}
	if err := s.MarkRead(ctx, id); err != nil {
		return "", err
	}
	return email.Subject, nil
}

// archiveEmail hides the message and returns its subject.
func archiveEmail(ctx context.Context, s store.Store, id string) (string, error) {
	email, err := s.GetEmailByID(ctx, id)
	if err != nil {
		return "", err
	}
	if email == nil {
		return "", fmt.Errorf("no message with id %q", id)
	}
	if err := s.ArchiveEmail(ctx, id); err != nil {
		return "", err
	}
	return email.Subject, nil
}
