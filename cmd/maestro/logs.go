package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maestro/internal/app"
	"maestro/internal/domain"
	"maestro/internal/engine"
	"maestro/internal/repo"
)

func eventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Interaction event log"}
	ev.AddCommand(eventAddCmd())
	ev.AddCommand(eventListCmd())
	return ev
}

func eventAddCmd() *cobra.Command {
	var typ, text, attachment, metadata string
	cmd := &cobra.Command{
		Use:   "add <interaction-id>",
		Short: "Append a note, file or milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			var meta map[string]any
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return fmt.Errorf("--metadata must be a JSON object: %w", err)
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ev, err := a.Engine.AddEvent(ctx, engine.AddEventOptions{
					InteractionID: args[0],
					ActorID:       actor,
					Type:          typ,
					Text:          text,
					Attachment:    attachment,
					Metadata:      meta,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", domain.EventNote, "note, file or milestone")
	cmd.Flags().StringVar(&text, "text", "", "event text")
	cmd.Flags().StringVar(&attachment, "attachment", "", "attachment reference")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object")
	return cmd
}

func eventListCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list <interaction-id>",
		Short: "List events, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListEvents(ctx, args[0], actor, typ)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Type", "Actor", "Text"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.CreatedAt, ev.Type, ev.ActorID, ev.Text})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "filter by event type")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Project reports"}
	rep.AddCommand(reportAddCmd())
	rep.AddCommand(reportListCmd())
	return rep
}

func reportAddCmd() *cobra.Command {
	var opts engine.AddReportOptions
	cmd := &cobra.Command{
		Use:   "add <interaction-id>",
		Short: "Attach a report to an interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			opts.InteractionID = args[0]
			opts.ActorID = actor
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rep, err := a.Engine.AddReport(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.Summary, "summary", "", "summary")
	fs.StringSliceVar(&opts.Highlights, "highlight", nil, "highlight (repeatable)")
	fs.StringVar(&opts.Audience, "audience", "", "audience")
	fs.StringVar(&opts.Feedback, "feedback", "", "feedback")
	fs.StringVar(&opts.MediaLink, "media-link", "", "http(s) link to media")
	fs.StringVar(&opts.Attachment, "attachment", "", "attachment reference")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <interaction-id>",
		Short: "List reports of an interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListReports(ctx, args[0], actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Author", "Created", "Summary"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.AuthorID, r.CreatedAt, r.Summary})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func notificationCmd() *cobra.Command {
	n := &cobra.Command{Use: "notification", Short: "Queued user notifications"}
	n.AddCommand(notificationListCmd())
	n.AddCommand(notificationDispatchCmd())
	return n
}

func notificationListCmd() *cobra.Command {
	var userID string
	var unsent bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListNotifications(ctx, repo.NotificationFilter{UserID: userID, UnsentOnly: unsent, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Created", "User", "Kind", "Title", "Sent"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.CreatedAt, n.UserID, n.Kind, n.Title, n.IsSent})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only this user")
	cmd.Flags().BoolVar(&unsent, "unsent", false, "only undelivered")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	return cmd
}

func notificationDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver unsent notifications to the configured webhook once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d := a.Dispatcher()
				if d == nil {
					return errors.New("notifications.webhook.url is not configured")
				}
				n, err := d.RunOnce(ctx)
				fmt.Printf("Delivered %d notification(s)\n", n)
				return err
			})
		},
	}
}
