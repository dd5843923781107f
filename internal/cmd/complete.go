package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specflow/specflow/internal/workflow"
)

var completeCmd = &cobra.Command{
	Use:   "complete <project> [phase]",
	Short: "Complete a phase and advance",
	Long: `Mark a phase complete and advance to the next step of the workflow in
a single write. With no phase argument the project's current phase is
completed. A phase argument takes the composite form, e.g. pm-prd-review.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	projectID := args[0]

	var st *workflow.ProjectStatus
	if len(args) == 2 {
		ref, err := workflow.ParsePhaseRef(args[1])
		if err != nil {
			return err
		}
		st, err = d.engine.CompletePhaseAndAdvance(projectID, ref.Agent, ref.Phase)
		if err != nil {
			return err
		}
	} else {
		st, err = d.engine.MarkAIWorkComplete(projectID)
		if err != nil {
			return err
		}
	}

	if st.IsComplete() {
		fmt.Println("Workflow complete")
		return nil
	}
	fmt.Printf("Now at: %s\n", st.CurrentRef())
	return nil
}
