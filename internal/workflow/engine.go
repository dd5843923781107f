package workflow

import (
	"sync"
	"time"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/logging"
)

// Store is the persistence dependency of the engine. It is deliberately
// small so tests can substitute an in-memory fake and count writes.
//
// Read returns ErrProjectNotFound when no record exists; an unparseable
// record is treated the same way (absence, not failure). Write must be
// atomic: a reader never observes a partially written record.
type Store interface {
	Read(projectID string) (*ProjectStatus, error)
	Write(projectID string, status *ProjectStatus) error
	GetOrCreate(projectID string) (*ProjectStatus, error)
}

// Engine performs all mutations of project status records. Each operation
// is a single load → mutate → persist cycle under a per-project mutex, so
// in-process callers are serialized per project. Cross-process exclusion is
// not attempted; one driver per checkout is the deployment model.
type Engine struct {
	store Store
	def   *Definition
	log   *logging.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption is a functional option for configuring an Engine.
type EngineOption func(*Engine)

// WithDefinition overrides the built-in workflow definition.
func WithDefinition(def *Definition) EngineOption {
	return func(e *Engine) {
		e.def = def
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(log *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock overrides the time source, letting tests control timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a transition engine over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		def:   DefaultDefinition(),
		log:   logging.NopLogger(),
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Definition returns the workflow definition the engine operates on.
func (e *Engine) Definition() *Definition {
	return e.def
}

// lockFor returns the mutex serializing operations for one project.
func (e *Engine) lockFor(projectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[projectID] = l
	}
	return l
}

// GetOrCreateStatus returns the project's status record, creating and
// persisting the default initial record if none exists.
func (e *Engine) GetOrCreateStatus(projectID string) (*ProjectStatus, error) {
	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	return e.store.GetOrCreate(projectID)
}

// UpdatePhaseStatus sets the status of one phase, maintaining the phase's
// set-once timestamps, the owning agent's aggregate state, and the
// append-only history, then persists once.
func (e *Engine) UpdatePhaseStatus(projectID string, agent Agent, phase string, newStatus PhaseStatus) (*ProjectStatus, error) {
	if !newStatus.Valid() {
		return nil, errors.NewValidationError("unknown phase status").WithField("status").WithValue(string(newStatus))
	}

	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, err
	}

	if err := e.applyPhaseStatus(st, agent, phase, newStatus); err != nil {
		return nil, err
	}

	if err := e.persist(projectID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// AdvanceToNextPhase moves the project to the next phase in the fixed
// progression. It is a no-op when the workflow is complete or when the
// current phase is not yet complete, so callers may invoke it speculatively.
func (e *Engine) AdvanceToNextPhase(projectID string) (*ProjectStatus, error) {
	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, err
	}

	changed, err := e.applyAdvance(st)
	if err != nil {
		return nil, err
	}
	if !changed {
		return st, nil
	}

	if err := e.persist(projectID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// CompletePhaseAndAdvance marks the phase complete and advances, batching
// both mutations into a single persisted write. Calling the two operations
// separately would write twice and expose a stale intermediate state to
// external observers.
func (e *Engine) CompletePhaseAndAdvance(projectID string, agent Agent, phase string) (*ProjectStatus, error) {
	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, err
	}

	if err := e.applyPhaseStatus(st, agent, phase, PhaseComplete); err != nil {
		return nil, err
	}
	if _, err := e.applyAdvance(st); err != nil {
		return nil, err
	}

	if err := e.persist(projectID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MarkAIWorkStarted flags the current phase as being produced by the
// external AI process. No-op when the workflow is complete.
func (e *Engine) MarkAIWorkStarted(projectID string) (*ProjectStatus, error) {
	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, err
	}
	if st.IsComplete() {
		return st, nil
	}

	ref := st.CurrentRef()
	if err := e.applyPhaseStatus(st, ref.Agent, ref.Phase, PhaseAIWorking); err != nil {
		return nil, err
	}

	if err := e.persist(projectID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MarkAIWorkComplete completes the current phase and advances, in one write.
// No-op when the workflow is complete.
func (e *Engine) MarkAIWorkComplete(projectID string) (*ProjectStatus, error) {
	l := e.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	st, err := e.store.GetOrCreate(projectID)
	if err != nil {
		return nil, err
	}
	if st.IsComplete() {
		return st, nil
	}

	ref := st.CurrentRef()
	if err := e.applyPhaseStatus(st, ref.Agent, ref.Phase, PhaseComplete); err != nil {
		return nil, err
	}
	if _, err := e.applyAdvance(st); err != nil {
		return nil, err
	}

	if err := e.persist(projectID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// applyPhaseStatus mutates st in memory: ensures the phase record exists,
// maintains set-once timestamps, appends a history entry on observed status
// change, and recomputes the owning agent's aggregate state.
func (e *Engine) applyPhaseStatus(st *ProjectStatus, agent Agent, phase string, newStatus PhaseStatus) error {
	spec, ok := e.def.AgentSpecFor(agent)
	if !ok {
		return errors.NewProjectError("agent not in workflow", errors.ErrUnknownAgent).
			WithProjectID(st.ProjectID).WithPhase(string(agent))
	}
	if _, ok := e.def.PhaseSpecFor(agent, phase); !ok {
		return errors.NewProjectError("phase not in workflow", errors.ErrUnknownPhase).
			WithProjectID(st.ProjectID).WithPhase(PhaseRef{Agent: agent, Phase: phase}.String())
	}

	as, ok := st.Agents[agent]
	if !ok {
		as = &AgentStatus{Status: AgentNotStarted, Phases: make(map[string]*PhaseRecord)}
		st.Agents[agent] = as
	}
	if as.Phases == nil {
		as.Phases = make(map[string]*PhaseRecord)
	}

	rec, ok := as.Phases[phase]
	if !ok {
		rec = &PhaseRecord{Status: PhaseNotStarted}
		as.Phases[phase] = rec
	}

	prev := rec.Status
	now := e.now()

	if prev == PhaseNotStarted && newStatus != PhaseNotStarted && rec.StartedAt == nil {
		started := now
		rec.StartedAt = &started
	}
	if newStatus == PhaseComplete && rec.CompletedAt == nil {
		completed := now
		rec.CompletedAt = &completed
	}
	rec.Status = newStatus

	if prev != newStatus {
		startedAt := now
		if rec.StartedAt != nil {
			startedAt = *rec.StartedAt
		}
		st.History = append(st.History, HistoryEntry{
			Phase:       PhaseRef{Agent: agent, Phase: phase}.String(),
			StartedAt:   startedAt,
			CompletedAt: rec.CompletedAt,
			Status:      newStatus,
		})
		e.log.Debug("phase status changed",
			"project_id", st.ProjectID,
			"phase", PhaseRef{Agent: agent, Phase: phase}.String(),
			"from", string(prev),
			"to", string(newStatus))
	}

	e.recomputeAgent(spec, as)
	return nil
}

// recomputeAgent derives the agent's aggregate state from its phase list.
// CompletedAt is set once and never cleared, even if phases are re-touched.
func (e *Engine) recomputeAgent(spec *AgentSpec, as *AgentStatus) {
	allComplete := true
	anyTouched := false
	for _, ps := range spec.Phases {
		rec, ok := as.Phases[ps.Name]
		if !ok || rec.Status != PhaseComplete {
			allComplete = false
		}
		if ok && rec.Status != PhaseNotStarted {
			anyTouched = true
		}
	}

	switch {
	case allComplete:
		as.Status = AgentDone
		if as.CompletedAt == nil {
			completed := e.now()
			as.CompletedAt = &completed
		}
	case anyTouched:
		as.Status = AgentInProgress
	default:
		as.Status = AgentNotStarted
	}
}

// applyAdvance moves the project forward one step in memory. Returns false
// without mutating when the workflow is complete or the current phase is
// not complete yet.
func (e *Engine) applyAdvance(st *ProjectStatus) (bool, error) {
	if st.IsComplete() {
		return false, nil
	}

	ref := st.CurrentRef()
	rec := st.CurrentPhaseRecord()
	if rec == nil || rec.Status != PhaseComplete {
		return false, nil
	}

	as := st.Agents[ref.Agent]

	if next, ok := e.def.NextPhase(ref.Agent, ref.Phase); ok {
		as.CurrentPhase = next
		if _, ok := as.Phases[next]; !ok {
			as.Phases[next] = &PhaseRecord{Status: PhaseNotStarted}
		}
		if entry := e.def.EntryStatusFor(ref.Agent, next); entry != PhaseNotStarted {
			if err := e.applyPhaseStatus(st, ref.Agent, next, entry); err != nil {
				return false, err
			}
		}
		e.log.Info("advanced to next phase",
			"project_id", st.ProjectID,
			"phase", PhaseRef{Agent: ref.Agent, Phase: next}.String())
		return true, nil
	}

	nextAgent := e.def.NextAgent(ref.Agent)
	st.CurrentAgent = nextAgent
	if nextAgent == AgentComplete {
		e.log.Info("workflow complete", "project_id", st.ProjectID)
		return true, nil
	}

	nextAS, ok := st.Agents[nextAgent]
	if !ok {
		nextAS = &AgentStatus{Status: AgentNotStarted, Phases: make(map[string]*PhaseRecord)}
		st.Agents[nextAgent] = nextAS
	}
	first, _ := e.def.FirstPhase(nextAgent)
	nextAS.CurrentPhase = first
	if _, ok := nextAS.Phases[first]; !ok {
		nextAS.Phases[first] = &PhaseRecord{Status: PhaseNotStarted}
	}

	e.log.Info("advanced to next agent",
		"project_id", st.ProjectID,
		"agent", string(nextAgent),
		"phase", PhaseRef{Agent: nextAgent, Phase: first}.String())
	return true, nil
}

// persist stamps LastUpdatedAt and writes once. The timestamp is forced
// strictly past its previous value so every successful write is ordered.
func (e *Engine) persist(projectID string, st *ProjectStatus) error {
	now := e.now()
	if !now.After(st.LastUpdatedAt) {
		now = st.LastUpdatedAt.Add(time.Nanosecond)
	}
	st.LastUpdatedAt = now

	if err := e.store.Write(projectID, st); err != nil {
		return errors.NewProjectError("failed to persist status", err).WithProjectID(projectID)
	}
	return nil
}
