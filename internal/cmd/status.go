package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/tui/styles"
	"github.com/specflow/specflow/internal/workflow"
)

var statusHistory bool

var statusCmd = &cobra.Command{
	Use:   "status [project]",
	Short: "Show project workflow status",
	Long: `Display a project's progress through the workflow: every role, every
phase, and where the project currently stands. With no project argument,
lists all known projects.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "show the full phase transition history")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if len(args) == 0 {
		return listProjects(d)
	}

	projectID := args[0]
	st, err := d.store.Read(projectID)
	if err != nil {
		if errors.Is(err, errors.ErrProjectNotFound) {
			return fmt.Errorf("no such project %q (run 'specflow init %s' first)", projectID, projectID)
		}
		return err
	}

	printStatus(d, st)
	if statusHistory {
		printHistory(st)
	}
	return nil
}

func listProjects(d *deps) error {
	ids, err := d.store.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No projects")
		return nil
	}

	for _, id := range ids {
		st, err := d.store.Read(id)
		if err != nil {
			fmt.Printf("%-24s %s\n", id, styles.Error.Render("unreadable"))
			continue
		}
		fmt.Printf("%-24s %s\n", id, st.CurrentRef())
	}
	return nil
}

func printStatus(d *deps, st *workflow.ProjectStatus) {
	fmt.Printf("Project: %s\n", st.ProjectID)
	fmt.Printf("Current: %s\n", st.CurrentRef())
	fmt.Printf("Updated: %s\n\n", st.LastUpdatedAt.Format("2006-01-02 15:04:05"))

	for _, agent := range d.def.AgentNames() {
		spec, _ := d.def.AgentSpecFor(agent)
		as := st.Agents[agent]

		name := string(agent)
		if agent == st.CurrentAgent {
			name = styles.Primary.Render(name + " ◂")
		}
		fmt.Println(name)

		for _, ps := range spec.Phases {
			phaseStatus := workflow.PhaseNotStarted
			if as != nil {
				if rec, ok := as.Phases[ps.Name]; ok {
					phaseStatus = rec.Status
				}
			}
			fmt.Printf("  %s %s\n", styles.StatusStyle(phaseStatus).Render(styles.StatusGlyph(phaseStatus)), ps.Name)
		}
		fmt.Println()
	}

	if st.IsComplete() {
		fmt.Println(styles.Secondary.Render("Workflow complete"))
	}
}

func printHistory(st *workflow.ProjectStatus) {
	if len(st.History) == 0 {
		fmt.Println("No history")
		return
	}

	fmt.Println("History:")
	for _, e := range st.History {
		line := fmt.Sprintf("  %s  %-32s %s",
			e.StartedAt.Format("2006-01-02 15:04:05"), e.Phase, e.Status)
		fmt.Println(styles.Muted.Render(line))
	}
}
