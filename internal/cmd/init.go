package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <project>",
	Short: "Initialize a project",
	Long: `Create the initial status record for a project and its docs directory.
A fresh project starts with the PM role at the questions-generate phase.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	projectID := args[0]

	st, err := d.engine.GetOrCreateStatus(projectID)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	docsDir := filepath.Join(d.projectRoot(projectID), "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	fmt.Printf("Initialized %s at %s\n", projectID, st.CurrentRef())
	fmt.Printf("Docs: %s\n", docsDir)
	return nil
}
