package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/specflow/specflow/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <project>",
	Short: "Live terminal view of a project's workflow",
	Long: `Open a live dashboard for one project: every role and phase, the
current position, a preview of the artifact being produced, and the tail of
the transition history. The view reloads when the status record changes on
disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	projectID := args[0]

	m := tui.NewModel(d.store, projectID, d.projectRoot(projectID),
		tui.WithDefinition(d.def),
		tui.WithLogger(d.log),
		tui.WithRefreshInterval(d.cfg.Dashboard.RefreshInterval()),
		tui.WithHistory(d.cfg.Dashboard.ShowHistory, d.cfg.Dashboard.HistoryLines))

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
