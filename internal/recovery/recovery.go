// Package recovery cross-checks the persisted workflow position against the
// artifacts on disk. Phases that require a human implicitly assert that
// certain artifacts exist and are non-trivial; when the record and reality
// disagree, the engine computes a safe fallback phase and rewrites the record.
package recovery

import (
	"path/filepath"
	"time"

	"github.com/specflow/specflow/internal/artifact"
	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/logging"
	"github.com/specflow/specflow/internal/workflow"
)

// Result is the outcome of validating one phase against the filesystem.
type Result struct {
	// IsValid is true when the phase's artifact expectations are met (or the
	// phase has no artifact expectations).
	IsValid bool
	// MissingFiles lists artifact paths that do not exist.
	MissingFiles []string
	// Reason describes why validation failed.
	Reason string
	// SuggestedPhase names the phase to fall back to, when invalid.
	SuggestedPhase *workflow.PhaseRef
	// Recovered is set by ValidateAndRecover when a corrective write happened.
	Recovered bool
}

// Engine validates phases and performs corrective rewrites of the status
// record. It is, besides the transition engine, the only writer of the record.
type Engine struct {
	store       workflow.Store
	def         *workflow.Definition
	projectsDir string
	log         *logging.Logger
	now         func() time.Time
	minDocBytes int
}

// Option is a functional option for configuring a recovery Engine.
type Option func(*Engine)

// WithDefinition overrides the built-in workflow definition.
func WithDefinition(def *workflow.Definition) Option {
	return func(e *Engine) {
		e.def = def
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMinDocumentBytes overrides the minimum document size for review-phase
// validation.
func WithMinDocumentBytes(n int) Option {
	return func(e *Engine) {
		e.minDocBytes = n
	}
}

// NewEngine creates a recovery engine. projectsDir is the directory holding
// one subdirectory per project (the root of each project's artifact layout).
func NewEngine(store workflow.Store, projectsDir string, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		def:         workflow.DefaultDefinition(),
		projectsDir: projectsDir,
		log:         logging.NopLogger(),
		now:         time.Now,
		minDocBytes: artifact.DefaultMinDocumentBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// layoutFor returns the artifact layout for one project.
func (e *Engine) layoutFor(projectID string) artifact.Layout {
	return artifact.NewLayout(filepath.Join(e.projectsDir, projectID))
}

// ValidateCurrentPhase checks one phase's artifact expectations. Dispatch is
// driven by the phase metadata: phases that do not require a human are
// trivially valid (generate phases have no artifact yet), awaiting-user
// phases require an answered questions document, and user-reviewing phases
// require the agent's generated document to exist and look complete.
func (e *Engine) ValidateCurrentPhase(projectID string, ref workflow.PhaseRef) Result {
	if ref.Agent == workflow.AgentComplete {
		return Result{IsValid: true}
	}

	spec, ok := e.def.PhaseSpecFor(ref.Agent, ref.Phase)
	if !ok || !spec.RequiresHuman {
		return Result{IsValid: true}
	}

	layout := e.layoutFor(projectID)

	var path string
	var err error
	switch spec.EntryStatus {
	case workflow.PhaseAwaitingUser:
		path = layout.QuestionsPath(ref.Agent)
		err = artifact.CheckQuestionsAnswered(path)
	case workflow.PhaseUserReviewing:
		docPath, ok := layout.DocumentPath(ref.Agent)
		if !ok {
			return Result{IsValid: true}
		}
		path = docPath
		err = artifact.CheckDocument(path, e.minDocBytes)
	default:
		return Result{IsValid: true}
	}

	if err == nil {
		return Result{IsValid: true}
	}

	res := Result{
		IsValid: false,
		Reason:  err.Error(),
	}
	var nf *errors.NotFoundError
	if errors.As(err, &nf) {
		res.MissingFiles = []string{path}
	}
	if prev, ok := e.def.PrevPhase(ref.Agent, ref.Phase); ok {
		res.SuggestedPhase = &workflow.PhaseRef{Agent: ref.Agent, Phase: prev}
	}
	return res
}

// ValidateAndRecover loads the project's status, validates the current phase,
// and — when invalid with a suggested fallback — rewrites the record to the
// fallback phase with status not-started. No history entry is appended: this
// is a correction, not a completed transition.
//
// Recovery is suppressed while any agent's current phase is user-reviewing:
// a phase under active human review must never be silently rolled back,
// because review phases can be advanced by side channels the artifact
// validator cannot observe.
func (e *Engine) ValidateAndRecover(projectID string) (*workflow.ProjectStatus, Result, error) {
	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, Result{}, err
	}

	if st.IsComplete() {
		return st, Result{IsValid: true}, nil
	}

	res := e.ValidateCurrentPhase(projectID, st.CurrentRef())
	if res.IsValid || res.SuggestedPhase == nil {
		return st, res, nil
	}

	if agent, phase, reviewing := anyPhaseUnderReview(st); reviewing {
		e.log.Info("recovery suppressed, phase under review",
			"project_id", projectID,
			"reviewing", workflow.PhaseRef{Agent: agent, Phase: phase}.String(),
			"reason", res.Reason)
		return st, res, nil
	}

	fallback := *res.SuggestedPhase
	st.CurrentAgent = fallback.Agent
	as, ok := st.Agents[fallback.Agent]
	if !ok {
		as = &workflow.AgentStatus{Status: workflow.AgentNotStarted, Phases: make(map[string]*workflow.PhaseRecord)}
		st.Agents[fallback.Agent] = as
	}
	as.CurrentPhase = fallback.Phase

	rec, ok := as.Phases[fallback.Phase]
	if !ok {
		rec = &workflow.PhaseRecord{}
		as.Phases[fallback.Phase] = rec
	}
	// Timestamps survive the reset; only the status is corrected.
	rec.Status = workflow.PhaseNotStarted

	now := e.now()
	if !now.After(st.LastUpdatedAt) {
		now = st.LastUpdatedAt.Add(time.Nanosecond)
	}
	st.LastUpdatedAt = now

	if err := e.store.Write(projectID, st); err != nil {
		return nil, res, errors.NewProjectError("failed to persist recovery", err).WithProjectID(projectID)
	}

	res.Recovered = true
	e.log.Warn("recovered project to fallback phase",
		"project_id", projectID,
		"phase", fallback.String(),
		"reason", res.Reason)
	return st, res, nil
}

// anyPhaseUnderReview reports whether any agent's current phase is in
// user-reviewing status.
func anyPhaseUnderReview(st *workflow.ProjectStatus) (workflow.Agent, string, bool) {
	for agent, as := range st.Agents {
		if as.CurrentPhase == "" {
			continue
		}
		rec, ok := as.Phases[as.CurrentPhase]
		if ok && rec.Status == workflow.PhaseUserReviewing {
			return agent, as.CurrentPhase, true
		}
	}
	return "", "", false
}
