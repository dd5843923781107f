package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/specflow/specflow/internal/artifact"
	"github.com/specflow/specflow/internal/workflow"
)

var (
	watchTimeout       time.Duration
	watchWaitForChange bool
	watchNoAdvance     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <project> [file]",
	Short: "Watch for the external process to finish writing an artifact",
	Long: `Watch a file until its content reflects a completed external edit, then
mark the project's current phase complete and advance. With no file argument
the artifact behind the current phase is watched.

The watch settles when the file gains substantial, stable content; it fails
only by running out of time. Use --wait-for-change when re-running a
refinement step on a file that already has prior content.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "give up after this long (default from config)")
	watchCmd.Flags().BoolVar(&watchWaitForChange, "wait-for-change", false, "require a change from the file's current content")
	watchCmd.Flags().BoolVar(&watchNoAdvance, "no-advance", false, "only report the outcome, do not complete the phase")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	projectID := args[0]

	st, err := d.engine.GetOrCreateStatus(projectID)
	if err != nil {
		return err
	}
	if st.IsComplete() {
		fmt.Println("Workflow already complete")
		return nil
	}

	var path string
	if len(args) == 2 {
		path = args[1]
	} else {
		path, err = currentArtifactPath(d, st)
		if err != nil {
			return err
		}
	}

	timeout := watchTimeout
	if timeout <= 0 {
		timeout = d.cfg.Watcher.DefaultTimeout()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("Watching %s (timeout %s)\n", path, timeout)
	settled, err := d.watcher.WatchForCompletion(ctx, path, timeout, watchWaitForChange)
	if err != nil {
		return err
	}
	if !settled {
		fmt.Println("Timed out before the file settled")
		return nil
	}

	fmt.Println("File settled")
	if watchNoAdvance {
		return nil
	}

	after, err := d.engine.MarkAIWorkComplete(projectID)
	if err != nil {
		return err
	}
	if after.IsComplete() {
		fmt.Println("Workflow complete")
		return nil
	}
	fmt.Printf("Now at: %s\n", after.CurrentRef())
	return nil
}

// currentArtifactPath resolves the artifact the current phase produces.
func currentArtifactPath(d *deps, st *workflow.ProjectStatus) (string, error) {
	ref := st.CurrentRef()
	layout := artifact.NewLayout(d.projectRoot(st.ProjectID))

	spec, ok := d.def.PhaseSpecFor(ref.Agent, ref.Phase)
	if !ok {
		return "", fmt.Errorf("phase %s has no artifact convention", ref)
	}
	if spec.EntryStatus == workflow.PhaseAwaitingUser {
		return layout.QuestionsPath(ref.Agent), nil
	}
	path, ok := layout.DocumentPath(ref.Agent)
	if !ok {
		return "", fmt.Errorf("agent %s has no document convention", ref.Agent)
	}
	return path, nil
}
