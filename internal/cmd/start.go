package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <project>",
	Short: "Mark external work as started on the current phase",
	Long: `Flag the project's current phase as ai-working: an external editor or
agent is now producing the phase's artifact. Pair with 'specflow watch' to
detect when that work finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.engine.MarkAIWorkStarted(args[0])
	if err != nil {
		return err
	}
	if st.IsComplete() {
		fmt.Println("Workflow already complete")
		return nil
	}

	fmt.Printf("Working: %s\n", st.CurrentRef())
	return nil
}
