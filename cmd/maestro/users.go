package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maestro/internal/app"
	"maestro/internal/domain"
	"maestro/internal/repo"
	"maestro/internal/server"
)

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage user accounts"}
	usr.AddCommand(userAddCmd())
	usr.AddCommand(userListCmd())
	usr.AddCommand(userUseCmd())
	return usr
}

func userAddCmd() *cobra.Command {
	var u domain.User
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if u.ID == "" {
				u.ID = uuid.NewString()
			}
			if u.Username == "" {
				return errors.New("--username required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.Repo.UpsertUser(ctx, u); err != nil {
					return err
				}
				saved, err := a.Engine.Repo.GetUser(ctx, u.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&u.ID, "id", "", "user id (generated when empty)")
	cmd.Flags().StringVar(&u.Username, "username", "", "unique username")
	cmd.Flags().StringVar(&u.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email")
	cmd.Flags().BoolVar(&u.IsSuperuser, "superuser", false, "grant superuser")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Engine.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Name", "Superuser"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Username, u.FullName, u.IsSuperuser})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <user-id|username>",
		Short: "Set the default actor in the workspace .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			var u domain.User
			err := withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var err error
				u, err = a.Engine.Repo.GetUser(ctx, args[0])
				if errors.Is(err, repo.ErrNotFound) {
					u, err = a.Engine.Repo.GetUserByUsername(ctx, args[0])
				}
				return err
			})
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("unknown user %s", args[0])
			}
			if err != nil {
				return err
			}
			if err := setEnvValue(filepath.Join(workspace, ".env"), "MAESTRO_ACTOR_ID", u.ID); err != nil {
				return err
			}
			fmt.Printf("Set MAESTRO_ACTOR_ID=%s (%s) in %s/.env\n", u.ID, u.Username, workspace)
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	prf := &cobra.Command{
		Use:   "profile",
		Short: "Manage role profiles",
		Long:  "A profile makes a user an agent, a venue or a performer. Creators are added to their own interactions for every role they hold a profile in.",
	}
	prf.AddCommand(profileAgentCmd())
	prf.AddCommand(profileVenueCmd())
	prf.AddCommand(profilePerformerCmd())
	prf.AddCommand(profileShowCmd())
	return prf
}

func profileAgentCmd() *cobra.Command {
	var p domain.AgentProfile
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Set the agent profile of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
				if err := a.Engine.Repo.UpsertAgentProfile(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&p.DisplayName, "display-name", "", "public name")
	cmd.Flags().StringVar(&p.AgencyName, "agency", "", "agency name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("display-name")
	return cmd
}

func profileVenueCmd() *cobra.Command {
	var p domain.VenueProfile
	cmd := &cobra.Command{
		Use:   "venue",
		Short: "Set the venue profile of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
				if err := a.Engine.Repo.UpsertVenueProfile(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&p.CompanyName, "company", "", "company name")
	cmd.Flags().StringVar(&p.ContactPerson, "contact", "", "contact person")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func profilePerformerCmd() *cobra.Command {
	var p domain.PerformerProfile
	cmd := &cobra.Command{
		Use:   "performer",
		Short: "Set the performer profile of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch p.PerformerType {
			case "", domain.PerformerVocalist, domain.PerformerInstrumentalist:
			default:
				return fmt.Errorf("--type must be %s or %s", domain.PerformerVocalist, domain.PerformerInstrumentalist)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
				if err := a.Engine.Repo.UpsertPerformerProfile(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&p.FullName, "full-name", "", "stage or full name")
	cmd.Flags().StringVar(&p.PerformerType, "type", "", "vocalist or instrumentalist")
	cmd.Flags().StringVar(&p.VoiceType, "voice", "", "voice type (vocalists)")
	cmd.Flags().StringVar(&p.Instrument, "instrument", "", "instrument (instrumentalists)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

func profileShowCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the profiles of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res := map[string]any{}
				for _, role := range domain.Roles {
					p, err := a.Engine.Profiles.Resolve(ctx, userID, role)
					if err != nil {
						return err
					}
					if p.None() {
						continue
					}
					res[role] = map[string]any{"display_name": p.DisplayName(), "agent": p.Agent, "venue": p.Venue, "performer": p.Performer}
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP API"}
	key.AddCommand(apiKeyCreateCmd())
	key.AddCommand(apiKeyListCmd())
	key.AddCommand(apiKeyRevokeCmd())
	return key
}

func apiKeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Engine.Repo.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("user %s: %w", userID, err)
				}
				raw, err := newAPIKey()
				if err != nil {
					return err
				}
				k := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": k.ID, "user_id": k.UserID, "name": k.Name, "key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "mk_" + hex.EncodeToString(buf), nil
}

func apiKeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				keys, err := a.Engine.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only keys of this user")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Revoked %s\n", args[0])
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Engine.Repo.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("user %s: %w", userID, err)
				}
				token, err := server.SignToken(jwtSecret(a), userID, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// jwtSecret prefers MAESTRO_JWT_SECRET over maestro.yml.
func jwtSecret(a *app.App) string {
	if s := viper.GetString("jwt-secret"); s != "" {
		return s
	}
	return a.Config.Auth.JWTSecret
}
