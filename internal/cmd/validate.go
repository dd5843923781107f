package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specflow/specflow/internal/tui/styles"
)

var validateNoRecover bool

var validateCmd = &cobra.Command{
	Use:   "validate <project>",
	Short: "Check the recorded phase against the artifacts on disk",
	Long: `Cross-check the project's recorded phase against the documents that
phase claims to exist. If the record has drifted from reality, the project
is reverted to the last artifact-backed phase, unless the phase is under
active human review or --no-recover is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateNoRecover, "no-recover", false, "report only, never rewrite the record")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	projectID := args[0]

	if validateNoRecover {
		st, err := d.engine.GetOrCreateStatus(projectID)
		if err != nil {
			return err
		}
		res := d.recovery.ValidateCurrentPhase(projectID, st.CurrentRef())
		if res.IsValid {
			fmt.Printf("%s %s\n", styles.Secondary.Render("valid"), st.CurrentRef())
			return nil
		}
		fmt.Printf("%s %s\n", styles.Warning.Render("invalid"), st.CurrentRef())
		fmt.Printf("Reason: %s\n", res.Reason)
		for _, f := range res.MissingFiles {
			fmt.Printf("Missing: %s\n", f)
		}
		if res.SuggestedPhase != nil {
			fmt.Printf("Suggested fallback: %s\n", res.SuggestedPhase)
		}
		return nil
	}

	st, res, err := d.recovery.ValidateAndRecover(projectID)
	if err != nil {
		return err
	}

	switch {
	case res.Recovered:
		fmt.Printf("%s reverted to %s\n", styles.Warning.Render("recovered"), st.CurrentRef())
		fmt.Printf("Reason: %s\n", res.Reason)
	case res.IsValid:
		fmt.Printf("%s %s\n", styles.Secondary.Render("valid"), st.CurrentRef())
	default:
		fmt.Printf("%s %s (recovery suppressed: phase under review)\n",
			styles.Warning.Render("invalid"), st.CurrentRef())
		fmt.Printf("Reason: %s\n", res.Reason)
	}
	return nil
}
