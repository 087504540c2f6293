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
	"opsline/internal/engine"
	"opsline/internal/engine/auth"
)

// readScope normalizes entityID against the actor's active entity and
// checks read access, returning the filter to list with.
func readScope(ctx context.Context, ws *app.Workspace, raw analytics.RawFilter) (domain.ReportFilter, error) {
	rc, err := requestContext(ctx, ws)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	f, err := analytics.NormalizeFilter(raw, rc)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	if err := analytics.Authorize(rc, f); err != nil {
		return domain.ReportFilter{}, err
	}
	return f, nil
}

func entityCmd() *cobra.Command {
	ent := &cobra.Command{Use: "entity", Short: "Manage entities"}
	ent.AddCommand(entityCreateCmd())
	ent.AddCommand(entityListCmd())
	ent.AddCommand(entityShowCmd())
	return ent
}

func entityCreateCmd() *cobra.Command {
	var opts engine.EntityCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, domain.ScopeAll, auth.PermRecordsWrite); err != nil {
					return err
				}
				ent, err := ws.Engine.CreateEntity(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "entity id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func entityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entities you can read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				rc, err := requestContext(ctx, ws)
				if err != nil {
					return err
				}
				items, err := ws.Engine.Repo.ListEntities(ctx)
				if err != nil {
					return err
				}
				visible := []domain.Entity{}
				for _, ent := range items {
					if analytics.Authorize(rc, domain.ReportFilter{EntityID: ent.ID}) == nil {
						visible = append(visible, ent)
					}
				}
				if viper.GetBool("json") {
					return printJSON(visible)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, ent := range visible {
					tw.AppendRow(table.Row{ent.ID, ent.Name, ent.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func entityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if _, err := readScope(ctx, ws, analytics.RawFilter{EntityID: args[0]}); err != nil {
					return err
				}
				ent, err := ws.Engine.Repo.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project inside an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.EntityID == "" {
				opts.EntityID = viper.GetString("entity")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, opts.EntityID, auth.PermRecordsWrite); err != nil {
					return err
				}
				p, err := ws.Engine.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional)")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "owning entity (defaults to --entity)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	var entityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				f, err := readScope(ctx, ws, analytics.RawFilter{EntityID: entityID})
				if err != nil {
					return err
				}
				items, err := ws.Engine.Repo.ListProjects(ctx, f.EntityID, domain.ScopeAll)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Entity", "Name", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.EntityID, p.Name, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id or all (defaults to --entity)")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				if _, err := readScope(ctx, ws, analytics.RawFilter{EntityID: p.EntityID}); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var status, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project's status or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				if err := requirePermission(ctx, ws, p.EntityID, auth.PermRecordsWrite); err != nil {
					return err
				}
				opts := engine.ProjectUpdateOptions{ID: p.ID, Status: status, ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				updated, err := ws.Engine.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (active, paused, archived)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func assigneeCmd() *cobra.Command {
	asg := &cobra.Command{Use: "assignee", Short: "Manage assignees"}
	asg.AddCommand(assigneeCreateCmd())
	asg.AddCommand(assigneeListCmd())
	return asg
}

func assigneeCreateCmd() *cobra.Command {
	var opts engine.AssigneeCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an assignee",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, domain.ScopeAll, auth.PermRecordsWrite); err != nil {
					return err
				}
				a, err := ws.Engine.CreateAssignee(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "assignee id (optional)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func assigneeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List assignees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.ListAssignees(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks move pending -> in_progress -> review -> completed. Spanish labels (pendiente, en_progreso, completada) are accepted.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var estimated, actual, progress float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("estimated-hours") {
				opts.EstimatedHours = &estimated
			}
			if cmd.Flags().Changed("actual-hours") {
				opts.ActualHours = &actual
			}
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Repo.GetProject(ctx, opts.ProjectID)
				if err != nil {
					return err
				}
				if err := requirePermission(ctx, ws, p.EntityID, auth.PermRecordsWrite); err != nil {
					return err
				}
				t, err := ws.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional)")
	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (default pending)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().Float64Var(&estimated, "estimated-hours", 0, "estimated hours")
	cmd.Flags().Float64Var(&actual, "actual-hours", 0, "actual hours")
	cmd.Flags().Float64Var(&progress, "progress", 0, "progress percentage")
	_ = cmd.MarkFlagRequired("project-id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var raw analytics.RawFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				f, err := readScope(ctx, ws, raw)
				if err != nil {
					return err
				}
				items, err := ws.Engine.Repo.FetchWorkItems(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Due"})
				for _, t := range items {
					assignee := deref(t.AssigneeID)
					if t.Assignee != nil {
						assignee = t.Assignee.Name
					}
					due := ""
					if t.DueDate != nil {
						due = t.DueDate.Format("2006-01-02")
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status.Label(), t.Priority, assignee, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&raw.EntityID, "entity-id", "", "entity id or all (defaults to --entity)")
	cmd.Flags().StringVar(&raw.ProjectID, "project-id", "", "project id")
	cmd.Flags().StringVar(&raw.AssigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringSliceVar(&raw.Status, "status", nil, "status filter (repeatable)")
	cmd.Flags().StringSliceVar(&raw.Priority, "priority", nil, "priority filter (repeatable)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, err := ws.Engine.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if t.EntityID != nil {
					if _, err := readScope(ctx, ws, analytics.RawFilter{EntityID: *t.EntityID}); err != nil {
						return err
					}
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var status, priority, due, assignee string
	var estimated, actual, progress float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long:  "Moving a task to completed stamps completed_at; moving it out clears it. Pass --assignee-id \"\" to unassign.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			flags := cmd.Flags()
			if flags.Changed("status") {
				opts.Status = &status
			}
			if flags.Changed("priority") {
				opts.Priority = &priority
			}
			if flags.Changed("due") {
				opts.DueDate = &due
			}
			if flags.Changed("assignee-id") {
				opts.Assign = &assignee
			}
			if flags.Changed("estimated-hours") {
				opts.EstimatedHours = &estimated
			}
			if flags.Changed("actual-hours") {
				opts.ActualHours = &actual
			}
			if flags.Changed("progress") {
				opts.Progress = &progress
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, err := ws.Engine.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				entityID := domain.ScopeAll
				if t.EntityID != nil {
					entityID = *t.EntityID
				}
				if err := requirePermission(ctx, ws, entityID, auth.PermRecordsWrite); err != nil {
					return err
				}
				updated, err := ws.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD, empty clears)")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "assignee id")
	cmd.Flags().Float64Var(&estimated, "estimated-hours", 0, "estimated hours")
	cmd.Flags().Float64Var(&actual, "actual-hours", 0, "actual hours")
	cmd.Flags().Float64Var(&progress, "progress", 0, "progress percentage")
	return cmd
}

func processCmd() *cobra.Command {
	proc := &cobra.Command{Use: "process", Short: "Manage hiring and procurement processes"}
	proc.AddCommand(processCreateCmd())
	proc.AddCommand(processListCmd())
	proc.AddCommand(processShowCmd())
	return proc
}

func processCreateCmd() *cobra.Command {
	var opts engine.ProcessCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a process with every phase pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.EntityID == "" {
				opts.EntityID = viper.GetString("entity")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := requirePermission(ctx, ws, opts.EntityID, auth.PermRecordsWrite); err != nil {
					return err
				}
				p, err := ws.Engine.CreateProcess(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "process id (optional)")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "owning entity (defaults to --entity)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Kind, "kind", "hiring", "kind (hiring, procurement)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func processListCmd() *cobra.Command {
	var entityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				f, err := readScope(ctx, ws, analytics.RawFilter{EntityID: entityID})
				if err != nil {
					return err
				}
				items, err := ws.Engine.Repo.ListProcesses(ctx, f.EntityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Entity", "Title", "Kind", "Progress", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.EntityID, p.Title, p.Kind, fmt.Sprintf("%d%%", p.Progress), p.Status.Label()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id or all (defaults to --entity)")
	return cmd
}

func processShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a process with its phase checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPhases(cmd.Context(), strings.TrimSpace(args[0]))
		},
	}
}
