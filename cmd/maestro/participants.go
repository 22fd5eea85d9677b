package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maestro/internal/app"
	"maestro/internal/domain"
	"maestro/internal/engine"
)

func participantCmd() *cobra.Command {
	p := &cobra.Command{
		Use:     "participant",
		Aliases: []string{"link"},
		Short:   "Manage participant links and answer invitations",
	}
	p.AddCommand(participantAddCmd())
	p.AddCommand(participantRemoveCmd())
	p.AddCommand(participantSyncCmd())
	p.AddCommand(participantListCmd())
	p.AddCommand(participantRespondCmd())
	p.AddCommand(participantCompleteCmd())
	return p
}

func participantAddCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "add <interaction-id>",
		Short: "Invite a user under a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				l, err := a.Engine.AddParticipant(ctx, engine.AddParticipantOptions{
					InteractionID: args[0],
					ActorID:       actor,
					UserID:        userID,
					Role:          role,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(l)
				}
				fmt.Printf("Link %s: %s as %s (%s)\n", l.ID, l.UserID, l.Role, l.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "agent, venue or performer")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func participantRemoveCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "remove <interaction-id>",
		Short: "Remove a user's links, or only the one of --role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, err := a.Engine.RemoveParticipant(ctx, engine.RemoveParticipantOptions{
					InteractionID: args[0],
					ActorID:       actor,
					UserID:        userID,
					Role:          role,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(it)
				}
				fmt.Printf("Removed %s from %s (%s)\n", userID, it.ID, it.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "only this role")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func participantSyncCmd() *cobra.Command {
	var rf roleFlags
	cmd := &cobra.Command{
		Use:   "sync <interaction-id>",
		Short: "Replace the participant set of every role",
		Long:  "Roles without a flag end up empty. Existing links of kept users are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.SyncParticipants(ctx, engine.SyncOptions{
					InteractionID: args[0],
					ActorID:       actor,
					Participants:  rf.participants(cmd.Flags(), true),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Synced %s (%s): %d added, %d removed\n", res.Interaction.ID, res.Interaction.Status, len(res.Added), len(res.Removed))
				return nil
			})
		},
	}
	rf = addRoleFlags(cmd.Flags())
	return cmd
}

func participantListCmd() *cobra.Command {
	var role string
	var acceptedOnly bool
	cmd := &cobra.Command{
		Use:   "list <interaction-id>",
		Short: "List participants with their display names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Participants(ctx, args[0], actor, role, acceptedOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Link", "Role", "User", "Name", "Invitation", "Completion"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Role, p.UserID, p.DisplayName, p.Status, p.CompletionStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only this role")
	cmd.Flags().BoolVar(&acceptedOnly, "accepted", false, "only accepted participants")
	return cmd
}

func participantRespondCmd() *cobra.Command {
	return decisionCommand("respond", "Accept or decline an invitation",
		domain.LinkAccepted+"|"+domain.LinkDeclined, engine.Engine.RespondToInvitation)
}

func participantCompleteCmd() *cobra.Command {
	return decisionCommand("complete", "Confirm or decline completion of an interaction",
		domain.CompletionConfirmed+"|"+domain.CompletionDeclined, engine.Engine.RespondToCompletion)
}

func decisionCommand(use, short, choices string, op func(engine.Engine, context.Context, engine.RespondOptions) (domain.Interaction, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <link-id> <" + choices + ">",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				it, err := op(a.Engine, ctx, engine.RespondOptions{LinkID: args[0], ActorID: actor, Decision: args[1]})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(it)
				}
				fmt.Printf("Recorded %s on %s; interaction %s is %s\n", args[1], args[0], it.ID, it.Status)
				return nil
			})
		},
	}
}
