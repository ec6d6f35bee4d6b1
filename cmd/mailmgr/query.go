package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-manager/internal/dates"
	"github.com/nhle/mail-manager/internal/model"
	"github.com/nhle/mail-manager/internal/store"
)

func newListCmd(app *appContext) *cobra.Command {
	var (
		priority string
		tag      string
		query    string
		unread   bool
		archived bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored messages",
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

			filter := store.EmailFilter{
				IncludeArchived: archived,
				SortBy:          "date",
				SortDesc:        true,
				Limit:           limit,
			}
			if priority != "" {
				p := model.ParsePriority(priority)
				filter.Priority = &p
			}
			if tag != "" {
				filter.Tag = &tag
			}
			if query != "" {
				filter.Query = &query
			}
			if unread {
				u := true
				filter.Unread = &u
			}

			emails, err := s.GetEmails(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(emails) == 0 {
				pterm.Info.Println("No messages found")
				return nil
			}

			renderEmails(emails)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", "",
		"filter by priority (urgent, important, normal, archive)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "filter by tag")
	cmd.Flags().StringVarP(&query, "query", "s", "",
		"search subject, sender, and summary")
	cmd.Flags().BoolVarP(&unread, "unread", "u", false, "unread only")
	cmd.Flags().BoolVarP(&archived, "archived", "a", false,
		"include archived messages")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func renderEmails(emails []model.ClassifiedEmail) {
	now := time.Now()

	data := pterm.TableData{
		{"", "Priority", "From", "Subject", "Tags", "Deadline", "Received"},
	}
	for _, e := range emails {
		marker := " "
		if !e.IsRead {
			marker = "*"
		}

		deadline := ""
		if e.Deadline != "" {
			deadline = dates.FormatCountdown(e.Deadline, now)
		}

		data = append(data, []string{
			marker,
			string(e.Priority),
			e.SenderName,
			truncateCell(e.Subject, 48),
			strings.Join(e.Tags, ","),
			deadline,
			dates.FormatRelativeTime(e.Date, now),
		})
	}

	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func newStatsCmd(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mailbox statistics",
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

			stats, err := s.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			pterm.DefaultSection.Println("Mailbox")
			pterm.Info.Printf("Messages: %d\n", stats.Total)
			pterm.Info.Printf("Unread: %d\n", stats.Unread)
			pterm.Info.Printf("Processed: %d\n", stats.Processed)
			pterm.Info.Printf("With deadline: %d\n", stats.WithDeadline)

			pterm.DefaultSection.Println("By priority")
			for _, p := range []model.Priority{
				model.PriorityUrgent, model.PriorityImportant,
				model.PriorityNormal, model.PriorityArchive,
			} {
				pterm.Info.Printf("%s: %d\n", p, stats.ByPriority[p])
			}

			last, err := s.LastCompletedSync(cmd.Context())
			if err != nil {
				return err
			}
			if last != nil {
				pterm.Info.Printf("Last sync: %s\n",
					dates.FormatRelativeTime(*last, time.Now()))
			}
			return nil
		},
	}
}

func newSessionsCmd(app *appContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show recent sync sessions",
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

			sessions, err := s.GetSyncSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				pterm.Info.Println("No sync sessions yet")
				return nil
			}

			data := pterm.TableData{
				{"ID", "Started", "Type", "Days", "Synced", "Status", "Error"},
			}
			now := time.Now()
			for _, sess := range sessions {
				data = append(data, []string{
					strconv.FormatInt(sess.ID, 10),
					dates.FormatRelativeTime(sess.StartedAt, now),
					string(sess.Type),
					strconv.Itoa(sess.Days),
					strconv.Itoa(sess.EmailsSynced),
					sess.Status,
					truncateCell(sess.ErrorMessage, 40),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum rows")
	return cmd
}

func newHeadersCmd(app *appContext) *cobra.Command {
	var (
		days  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Preview recent mailbox headers without syncing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			gateway, err := app.openGateway(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := gateway.Connect(ctx); err != nil {
				return err
			}
			defer func() { _ = gateway.Disconnect() }()

			since := time.Now().AddDate(0, 0, -days)
			headers, err := gateway.FetchHeaders(ctx, since, limit)
			if err != nil {
				return err
			}
			if len(headers) == 0 {
				pterm.Info.Println("No recent messages")
				return nil
			}

			now := time.Now()
			data := pterm.TableData{{"From", "Subject", "Received"}}
			for _, h := range headers {
				data = append(data, []string{
					h.SenderName,
					truncateCell(h.Subject, 60),
					dates.FormatRelativeTime(h.Date, now),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 3, "look-back window in days")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	return cmd
}

// truncateCell shortens a cell to at most limit characters, counting
// runes so multibyte subjects are never split mid-character.
func truncateCell(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
