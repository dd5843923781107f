package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/specflow/specflow/internal/config"
	"github.com/specflow/specflow/internal/logging"
	"github.com/specflow/specflow/internal/recovery"
	"github.com/specflow/specflow/internal/status"
	"github.com/specflow/specflow/internal/watch"
	"github.com/specflow/specflow/internal/workflow"
)

// deps is the wired-up object graph every command operates on.
type deps struct {
	cfg      *config.Config
	log      *logging.Logger
	def      *workflow.Definition
	store    *status.FileStore
	engine   *workflow.Engine
	recovery *recovery.Engine
	watcher  *watch.Watcher
}

// buildDeps loads the configuration and wires up the store, engines and
// watcher. Callers must Close the result.
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.StateDir(), cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
	}

	def := workflow.DefaultDefinition()
	if cfg.Paths.WorkflowFile != "" {
		def, err = workflow.LoadDefinition(config.ExpandPath(cfg.Paths.WorkflowFile))
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to load workflow definition: %w", err)
		}
	}

	store, err := status.NewFileStore(cfg.StateDir(),
		status.WithDefinition(def),
		status.WithLogger(log))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open status store: %w", err)
	}

	engine := workflow.NewEngine(store,
		workflow.WithDefinition(def),
		workflow.WithLogger(log))

	rec := recovery.NewEngine(store, cfg.ProjectsDir(),
		recovery.WithDefinition(def),
		recovery.WithLogger(log),
		recovery.WithMinDocumentBytes(cfg.Validation.MinDocumentBytes))

	watcher := watch.NewWatcher(
		watch.WithConfig(watch.Config{
			PollInterval:   cfg.Watcher.PollInterval(),
			MinValidLength: cfg.Watcher.MinValidLength,
			MinChangeDelta: cfg.Watcher.MinChangeDelta,
			StabilityPolls: cfg.Watcher.StabilityPolls,
			GraceInterval:  cfg.Watcher.GraceInterval(),
		}),
		watch.WithLogger(log))

	return &deps{
		cfg:      cfg,
		log:      log,
		def:      def,
		store:    store,
		engine:   engine,
		recovery: rec,
		watcher:  watcher,
	}, nil
}

// Close releases the dependencies.
func (d *deps) Close() {
	_ = d.log.Close()
}

// projectRoot returns the artifact root directory for one project.
func (d *deps) projectRoot(projectID string) string {
	return filepath.Join(d.cfg.ProjectsDir(), projectID)
}
