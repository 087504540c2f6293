package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsline/internal/analytics"
	"opsline/internal/app"
	"opsline/internal/domain"
	"opsline/internal/engine/auth"
	"opsline/internal/repo"
)

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "RBAC management",
		Long:  "Roles are declared in opsline.yml and granted per entity, or on all entities with --entity-id all.",
	}
	cmd.AddCommand(rbacWhoamiCmd())
	cmd.AddCommand(rbacChangeCmd(true))
	cmd.AddCommand(rbacChangeCmd(false))
	return cmd
}

func rbacWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and permissions per entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				who, err := ws.Engine.WhoAmI(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(who)
				}
				fmt.Printf("actor: %s\nroles: %s\n", who.ActorID, strings.Join(who.Roles, ", "))
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Entity", "Permissions"})
				for entityID, perms := range who.Grants {
					tw.AppendRow(table.Row{entityID, strings.Join(perms, ", ")})
				}
				tw.SortBy([]table.SortBy{{Name: "Entity", Mode: table.Asc}})
				tw.Render()
				return nil
			})
		},
	}
}

func rbacChangeCmd(grant bool) *cobra.Command {
	var g domain.RoleGrant
	use, short := "grant", "Grant a role to an actor"
	if !grant {
		use, short = "revoke", "Revoke a role from an actor"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.EntityID == "" {
				g.EntityID = domain.ScopeAll
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, g.EntityID, auth.PermRBACManage); err != nil {
					return err
				}
				actor := viper.GetString("actor-id")
				if grant {
					return ws.Engine.GrantRole(ctx, g, actor)
				}
				return ws.Engine.RevokeRole(ctx, g, actor)
			})
		},
	}
	cmd.Flags().StringVar(&g.ActorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&g.RoleID, "role", "", "role id")
	cmd.Flags().StringVar(&g.EntityID, "entity-id", "", "entity id or all (default all)")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate HTTP calls with X-Api-Key. The raw key is printed once; only its hash is stored.",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

// canManageKeysFor allows actors to manage their own keys; anyone else's
// needs rbac.manage on all entities.
func canManageKeysFor(ctx context.Context, ws *app.Workspace, owner string) error {
	if owner == viper.GetString("actor-id") {
		return nil
	}
	return requirePermission(ctx, ws, domain.ScopeAll, auth.PermRBACManage)
}

func apikeyCreateCmd() *cobra.Command {
	var owner, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = viper.GetString("actor-id")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := canManageKeysFor(ctx, ws, owner); err != nil {
					return err
				}
				key, err := ws.Engine.CreateAPIKey(ctx, owner, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(key)
				}
				fmt.Printf("id:  %s\nkey: %s\nStore the key now; it cannot be shown again.\n", key.ID, key.Key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "key owner (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = viper.GetString("actor-id")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := canManageKeysFor(ctx, ws, owner); err != nil {
					return err
				}
				keys, err := ws.Engine.Repo.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "key owner (defaults to --actor-id)")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, domain.ScopeAll, auth.PermRBACManage); err != nil {
					return err
				}
				return ws.Engine.RevokeAPIKey(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var q repo.EventQuery
	var entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				f, err := readScope(ctx, ws, analytics.RawFilter{EntityID: entityID})
				if err != nil {
					return err
				}
				q.EntityID = f.EntityID
				q.Limit = n
				events, err := ws.Engine.Repo.LatestEvents(ctx, q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Target", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.TargetKind + "/" + evt.TargetID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&q.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&q.TargetKind, "target-kind", "", "target kind (task, process, ...)")
	cmd.Flags().StringVar(&q.TargetID, "target-id", "", "target id")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id or all (defaults to --entity)")
	return cmd
}
