package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <project>",
	Short: "Advance past an already-completed phase",
	Long: `Move the project to the next phase. This is a no-op unless the current
phase is already complete, so it is always safe to run.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdvance,
}

func init() {
	rootCmd.AddCommand(advanceCmd)
}

func runAdvance(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	before, err := d.engine.GetOrCreateStatus(args[0])
	if err != nil {
		return err
	}
	after, err := d.engine.AdvanceToNextPhase(args[0])
	if err != nil {
		return err
	}

	if after.CurrentRef() == before.CurrentRef() {
		fmt.Printf("Still at: %s (current phase not complete)\n", after.CurrentRef())
		return nil
	}
	if after.IsComplete() {
		fmt.Println("Workflow complete")
		return nil
	}
	fmt.Printf("Now at: %s\n", after.CurrentRef())
	return nil
}
