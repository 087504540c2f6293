package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"opsline/internal/analytics"
	"opsline/internal/app"
	"opsline/internal/domain"
	"opsline/internal/engine/auth"
	"opsline/internal/phase"
)

type reportFlags struct {
	raw  analytics.RawFilter
	lang string
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.raw.ProjectID, "project", "", "project id or all")
	cmd.Flags().StringVar(&f.raw.EntityID, "entity-id", "", "entity id or all (defaults to --entity)")
	cmd.Flags().StringVar(&f.raw.StartDate, "from", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.raw.EndDate, "to", "", "window end (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.raw.Status, "status", nil, "status filter (repeatable)")
	cmd.Flags().StringSliceVar(&f.raw.Priority, "priority", nil, "priority filter (repeatable)")
	cmd.Flags().StringVar(&f.raw.AssigneeID, "assignee", "", "assignee id or all")
	cmd.Flags().StringVar(&f.lang, "lang", "es", "number formatting locale for tables")
}

func reportCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an operational report",
		Long: `Builds the report snapshot for the filter: totals, status and priority histograms,
team efficacy with delay risk, the burndown series and resource and cost figures.
Entity defaults to --entity; --entity-id all needs the report.global permission.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				snap, err := generateReport(ctx, ws, flags.raw)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				printReport(snap, flags.lang)
				return nil
			})
		},
	}
	flags.bind(cmd)
	cmd.AddCommand(reportCompareCmd())
	return cmd
}

func reportCompareCmd() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "compare <before.json> [after.json]",
		Short: "Diff two report snapshots",
		Long:  "Prints a unified diff between two saved snapshots (ol report --json > file). With one file, compares it against a fresh report for the given filter.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			afterName := "current"
			var after domain.ReportSnapshot
			if len(args) == 2 {
				afterName = args[1]
				if after, err = readSnapshot(args[1]); err != nil {
					return err
				}
			} else {
				err = withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
					after, err = generateReport(ctx, ws, flags.raw)
					return err
				})
				if err != nil {
					return err
				}
			}
			diff, err := analytics.DiffSnapshots(args[0], before, afterName, after)
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Println("snapshots are identical")
				return nil
			}
			fmt.Print(diff)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func generateReport(ctx context.Context, ws *app.Workspace, raw analytics.RawFilter) (domain.ReportSnapshot, error) {
	rc, err := requestContext(ctx, ws)
	if err != nil {
		return domain.ReportSnapshot{}, err
	}
	return ws.Reports.Report(ctx, rc, raw)
}

func readSnapshot(path string) (domain.ReportSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ReportSnapshot{}, err
	}
	var snap domain.ReportSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.ReportSnapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}

func printReport(snap domain.ReportSnapshot, lang string) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Spanish
	}
	p := message.NewPrinter(tag)

	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetTitle(fmt.Sprintf("Entidad %s / Proyecto %s", snap.Filter.EntityID, snap.Filter.ProjectID))
	summary.AppendRows([]table.Row{
		{"Tareas", p.Sprintf("%d", snap.TotalTasks)},
		{"Completadas", p.Sprintf("%d", snap.CompletedTasks)},
		{"Pendientes", p.Sprintf("%d", snap.PendingTasks)},
		{"Progreso medio", p.Sprintf("%.1f%%", snap.AvgProgress)},
		{"Horas estimadas", p.Sprintf("%.1f", snap.FinancialMetrics.EstimatedHours)},
		{"Horas reales", p.Sprintf("%.1f", snap.FinancialMetrics.ActualHours)},
		{"Costo real", p.Sprintf("%.2f", snap.FinancialMetrics.ActualCost)},
	})
	summary.Render()

	if len(snap.TeamEfficacy) > 0 {
		team := table.NewWriter()
		team.SetOutputMirror(os.Stdout)
		team.SetTitle("Equipo")
		team.AppendHeader(table.Row{"Responsable", "Tareas", "Eficacia", "Puntualidad", "Vencidas críticas", "Riesgo"})
		for _, r := range snap.TeamEfficacy {
			team.AppendRow(table.Row{
				r.Name,
				p.Sprintf("%d/%d", r.Completed, r.Total),
				p.Sprintf("%d%%", r.Efficacy),
				p.Sprintf("%d%%", r.Punctuality),
				r.OverdueCritical,
				p.Sprintf("%s (%.1f d)", r.RiskLevel.Label(), r.PredictedDelayRisk),
			})
		}
		team.Render()
	}

	burn := table.NewWriter()
	burn.SetOutputMirror(os.Stdout)
	burn.SetTitle("Burndown")
	burn.AppendHeader(table.Row{"Día", "Fecha", "Ideal", "Real", "Restantes"})
	for _, pt := range snap.BurndownData {
		burn.AppendRow(table.Row{pt.Day, pt.Date, p.Sprintf("%.2f", pt.Ideal), pt.Actual, pt.Remaining})
	}
	burn.Render()
}

func phaseCmd() *cobra.Command {
	ph := &cobra.Command{
		Use:   "phase",
		Short: "Inspect and toggle process phases",
		Long:  "Each process walks eight weighted phases. Progress is the sum of completed weights; 80% marks it awarded and 100% legalized.",
	}
	ph.AddCommand(phaseListCmd())
	ph.AddCommand(phaseShowCmd())
	ph.AddCommand(phaseToggleCmd())
	return ph
}

func phaseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the phase catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				defs := ws.Phases.Catalogue()
				if viper.GetBool("json") {
					return printJSON(defs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Code", "Name", "Weight"})
				for _, d := range defs {
					tw.AppendRow(table.Row{d.Position, d.Code, d.Name, d.Weight})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func phaseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <process-id>",
		Short: "Show a process checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPhases(cmd.Context(), args[0])
		},
	}
}

func phaseToggleCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "toggle <process-id> <phase-code>",
		Short: "Mark a phase complete (or incomplete with --undo)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				proc, err := ws.Engine.Repo.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				if err := requirePermission(ctx, ws, proc.EntityID, auth.PermPhaseToggle); err != nil {
					return err
				}
				state, err := ws.Phases.Toggle(ctx, phase.ToggleInput{
					ProcessID: args[0],
					PhaseCode: args[1],
					Completed: !undo,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printState(state)
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the phase incomplete")
	return cmd
}

func showPhases(ctx context.Context, processID string) error {
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		proc, err := ws.Engine.Repo.GetProcess(ctx, processID)
		if err != nil {
			return err
		}
		if _, err := readScope(ctx, ws, analytics.RawFilter{EntityID: proc.EntityID}); err != nil {
			return err
		}
		state, err := ws.Phases.Get(ctx, processID)
		if err != nil {
			return err
		}
		return printState(state)
	})
}

func printState(state phase.State) error {
	if viper.GetBool("json") {
		return printJSON(state)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(fmt.Sprintf("%s: %d%% (%s)", state.Process.Title, state.Progress, state.Status.Label()))
	tw.AppendHeader(table.Row{"#", "Phase", "Weight", "Done", "By"})
	for _, ph := range state.Phases {
		done := ""
		if ph.IsCompleted {
			done = "x"
			if ph.CompletedAt != nil {
				done = ph.CompletedAt.Format("2006-01-02")
			}
		}
		tw.AppendRow(table.Row{ph.Position, ph.Name, ph.Weight, done, deref(ph.CompletedBy)})
	}
	tw.Render()
	return nil
}
