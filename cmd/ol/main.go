package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsline/internal/analytics"
	"opsline/internal/app"
	"opsline/internal/config"
	"opsline/internal/db"
	"opsline/internal/server"
	"opsline/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "ol",
	Short: "Opsline CLI",
	Long: `Opsline keeps the operational picture of public-sector entities: projects and their
tasks, the people assigned to them and the hiring or procurement processes that move
through a fixed phase checklist.
- Workspace: the .opsline directory holding the SQLite database; opsline.yml next to it tunes reports and roles.
- Entity: an organization (a mayoralty, a secretariat). Every project and process belongs to one.
- Report: totals, team efficacy, burndown and risk for a filter; scoped to the entities you hold a role on.
- Phases: eight weighted steps per process; progress and status are derived from them.
- Event log: every change is recorded, view it with 'ol log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OPSLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("entity", "", "active entity id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("entity", rootCmd.PersistentFlags().Lookup("entity"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(entityCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(assigneeCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create opsline.yml and make the current actor admin of an empty workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				actor := viper.GetString("actor-id")
				bootstrapped, err := ws.Engine.InitWorkspace(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"actor_id": actor, "bootstrapped": bootstrapped})
				}
				if bootstrapped {
					fmt.Printf("Granted admin on all entities to %s\n", actor)
				} else {
					fmt.Println("Workspace already has role grants; nothing to do")
				}
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "opsline.yml holds report tuning (window, list limits, load thresholds, hourly rate), risk thresholds, roles and webhooks. Missing keys fall back to defaults.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate opsline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default opsline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				env.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				env.BasePath = basePath
			}
			if env.JWTSecret == "" {
				return fmt.Errorf("OPSLINE_JWT_SECRET is required for bearer auth")
			}
			logger, err := telemetry.NewLogger(os.Stderr, env.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, "opsline", env)
			if err != nil {
				return fmt.Errorf("setup tracing: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracing(sctx)
			}()

			ws, err := app.Open(ctx, viper.GetString("workspace"), app.Options{Observer: telemetry.NewLogObserver(logger)})
			if err != nil {
				return err
			}
			defer ws.Close()
			if bootstrapped, err := ws.Engine.InitWorkspace(ctx, viper.GetString("actor-id")); err != nil {
				return err
			} else if bootstrapped {
				logger.Info("workspace bootstrapped", "admin", viper.GetString("actor-id"))
			}

			handler, err := server.New(server.Config{
				Engine:   ws.Engine,
				Phases:   ws.Phases,
				Reports:  ws.Reports,
				BasePath: env.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:              env.JWTSecret,
					AllowLegacyActorHeader: env.AllowLegacyActor,
					Logger:                 logger,
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(ctx, ws.Engine, logger)

			srv := &http.Server{Addr: env.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(sctx)
			}()
			logger.Info("serving opsline api", "addr", env.Addr, "base_path", env.BasePath, "webhooks", len(ws.Config.Webhooks))
			fmt.Printf("Serving Opsline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", env.Addr, env.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides OPSLINE_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path (overrides OPSLINE_BASE_PATH)")
	return cmd
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, viper.GetString("workspace"), app.Options{})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// requestContext resolves the CLI actor's grants the same way the API does.
func requestContext(ctx context.Context, ws *app.Workspace) (analytics.RequestContext, error) {
	actor := viper.GetString("actor-id")
	grants, err := ws.Engine.Auth.Grants(ctx, actor)
	if err != nil {
		return analytics.RequestContext{}, err
	}
	return analytics.RequestContext{
		ActorID:        actor,
		ActiveEntityID: viper.GetString("entity"),
		Grants:         grants,
	}, nil
}

// requirePermission checks perm for the CLI actor on entityID.
func requirePermission(ctx context.Context, ws *app.Workspace, entityID, perm string) error {
	return ws.Engine.Auth.Require(ctx, entityID, viper.GetString("actor-id"), perm)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
