package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"maestro/internal/app"
	"maestro/internal/domain"
	"maestro/internal/engine"
)

func interactionCmd() *cobra.Command {
	it := &cobra.Command{
		Use:     "interaction",
		Aliases: []string{"project"},
		Short:   "Manage interactions",
	}
	it.AddCommand(interactionCreateCmd())
	it.AddCommand(interactionListCmd())
	it.AddCommand(interactionShowCmd())
	it.AddCommand(interactionUpdateCmd())
	it.AddCommand(interactionCancelCmd())
	it.AddCommand(interactionRecomputeCmd())
	it.AddCommand(interactionCompleteCmd())
	it.AddCommand(interactionProjectsCmd())
	return it
}

// roleFlags collects per-role user lists from --agent, --venue and --performer.
type roleFlags map[string]*[]string

func addRoleFlags(fs *pflag.FlagSet) roleFlags {
	rf := roleFlags{}
	for _, role := range domain.Roles {
		rf[role] = fs.StringSlice(role, nil, role+" user ids (repeatable or comma separated)")
	}
	return rf
}

// participants returns the requested sets; roles whose flag was not given are
// left out unless all is set.
func (rf roleFlags) participants(fs *pflag.FlagSet, all bool) map[string][]string {
	out := map[string][]string{}
	for role, ids := range rf {
		if !all && !fs.Changed(role) {
			continue
		}
		out[role] = append([]string{}, (*ids)...)
	}
	return out
}

func interactionCreateCmd() *cobra.Command {
	var title, description, typ, start, end, budget, currency, notes string
	var rf roleFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an interaction and invite its participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			opts := engine.CreateOptions{
				ActorID:        actor,
				Title:          title,
				Description:    description,
				Type:           typ,
				BudgetCurrency: currency,
				ResultNotes:    notes,
				Participants:   rf.participants(cmd.Flags(), false),
			}
			if start != "" {
				opts.StartDate = optionalString(start)
			}
			if end != "" {
				opts.EndDate = optionalString(end)
			}
			if budget != "" {
				opts.BudgetAmount = optionalString(budget)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, err := a.Engine.CreateInteraction(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(it)
				}
				fmt.Printf("Created %s (%s)\n", it.ID, it.Status)
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&title, "title", "", "title")
	fs.StringVar(&description, "description", "", "description")
	fs.StringVar(&typ, "type", domain.TypeOneTime, "one_time or long_term")
	fs.StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	fs.StringVar(&budget, "budget", "", "budget amount")
	fs.StringVar(&currency, "currency", domain.DefaultCurrency, "budget currency (RUB, USD, EUR)")
	fs.StringVar(&notes, "notes", "", "result notes")
	rf = addRoleFlags(fs)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func interactionListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List interactions visible to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListInteractions(ctx, actor, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Start", "Budget", "Creator"})
				for _, it := range items {
					budget := deref(it.BudgetAmount)
					if budget != "" {
						budget += " " + it.BudgetCurrency
					}
					tw.AppendRow(table.Row{it.ID, it.Title, it.Status, deref(it.StartDate), budget, it.CreatedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func interactionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <interaction-id>",
		Short: "Show an interaction with its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Engine.GetInteraction(ctx, args[0], actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				it := d.Interaction
				fmt.Printf("%s  %s\n", it.ID, it.Title)
				fmt.Printf("status: %s  type: %s  created by: %s\n", it.Status, it.Type, it.CreatedBy)
				if d.ParticipationStatus != "" {
					fmt.Printf("you: %s\n", d.ParticipationStatus)
				}
				if d.CompletionActive {
					fmt.Printf("completion requested at %s, %d pending\n", deref(it.CompletionRequestedAt), len(d.CompletionPending))
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Link", "Role", "User", "Name", "Invitation", "Completion"})
				for _, role := range domain.Roles {
					for _, p := range d.Participants[role] {
						tw.AppendRow(table.Row{p.ID, role, p.UserID, p.DisplayName, p.Status, p.CompletionStatus})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
}

func interactionUpdateCmd() *cobra.Command {
	var title, description, typ, start, end, budget, currency, notes string
	var rf roleFlags
	var syncAll bool
	cmd := &cobra.Command{
		Use:   "update <interaction-id>",
		Short: "Update fields of an interaction",
		Long:  "Only the flags given are changed. Role flags replace the participants of that role; --sync-all replaces every role, so omitted roles are emptied.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			opts := engine.UpdateOptions{ID: args[0], ActorID: actor}
			set := func(name, v string) *string {
				if fs.Changed(name) {
					return optionalString(v)
				}
				return nil
			}
			opts.Title = set("title", title)
			opts.Description = set("description", description)
			opts.Type = set("type", typ)
			opts.StartDate = set("start", start)
			opts.EndDate = set("end", end)
			opts.BudgetAmount = set("budget", budget)
			opts.BudgetCurrency = set("currency", currency)
			opts.ResultNotes = set("notes", notes)
			if p := rf.participants(fs, syncAll); len(p) > 0 || syncAll {
				opts.Participants = p
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, err := a.Engine.UpdateInteraction(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(it)
				}
				fmt.Printf("Updated %s (%s)\n", it.ID, it.Status)
				return nil
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&title, "title", "", "title")
	fs.StringVar(&description, "description", "", "description")
	fs.StringVar(&typ, "type", "", "one_time or long_term")
	fs.StringVar(&start, "start", "", "start date, empty to clear")
	fs.StringVar(&end, "end", "", "end date, empty to clear")
	fs.StringVar(&budget, "budget", "", "budget amount, empty to clear")
	fs.StringVar(&currency, "currency", "", "budget currency")
	fs.StringVar(&notes, "notes", "", "result notes")
	fs.BoolVar(&syncAll, "sync-all", false, "treat role flags as the complete participant set")
	rf = addRoleFlags(fs)
	return cmd
}

// statusCommand builds a command that runs op on one interaction and prints
// the resulting status.
func statusCommand(use, short, verb string, op func(e engine.Engine, ctx context.Context, id, actor string) (domain.Interaction, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <interaction-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, err := op(a.Engine, ctx, args[0], actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(it)
				}
				fmt.Printf("%s %s (%s)\n", verb, it.ID, it.Status)
				return nil
			})
		},
	}
}

func interactionCancelCmd() *cobra.Command {
	return statusCommand("cancel", "Cancel an interaction", "Cancelled", engine.Engine.CancelInteraction)
}

func interactionRecomputeCmd() *cobra.Command {
	return statusCommand("recompute", "Recompute the status from participant links", "Recomputed", engine.Engine.RecomputeStatus)
}

func interactionCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <interaction-id>",
		Short: "Ask accepted participants to confirm completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, started, err := a.Engine.RequestCompletion(ctx, args[0], actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"started": started, "interaction": it})
				}
				if !started {
					fmt.Printf("Completion not started: %s is %s or has no accepted participants\n", it.ID, it.Status)
					return nil
				}
				fmt.Printf("Completion requested for %s (%s)\n", it.ID, it.Status)
				return nil
			})
		},
	}
}

func interactionProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the actor's projects and what each expects from them",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.MyProjects(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "You", "Link", "Action"})
				for _, p := range items {
					linkID := ""
					if p.Link != nil {
						linkID = p.Link.ID
					}
					tw.AppendRow(table.Row{p.Interaction.ID, p.Interaction.Title, p.Interaction.Status, p.ParticipationStatus, linkID, projectAction(p)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectAction(p engine.ProjectSummary) string {
	var parts []string
	if p.Link != nil && p.Link.Status == domain.LinkPending {
		parts = append(parts, "respond to invitation")
	}
	if p.CompletionRequested {
		parts = append(parts, "confirm completion")
	}
	if p.CompletionDeclined {
		parts = append(parts, "completion declined")
	}
	return strings.Join(parts, ", ")
}
