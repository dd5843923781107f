// Package workflow models the multi-stage specification workflow: the fixed
// roles (agents), their ordered phase lists, and the persisted per-project
// status record that tracks progress through them. It also provides the
// transition engine that is the only writer of that record.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Agent is a workflow role that owns an ordered list of phases.
type Agent string

const (
	// AgentPM produces the product requirements document.
	AgentPM Agent = "pm"
	// AgentUX produces the design brief.
	AgentUX Agent = "ux"
	// AgentEngineer produces the technical spec.
	AgentEngineer Agent = "engineer"
	// AgentComplete is the terminal pseudo-agent reached after the engineer.
	AgentComplete Agent = "complete"
)

// PhaseStatus is the lifecycle status of a single phase.
type PhaseStatus string

const (
	// PhaseNotStarted means no work has happened in this phase yet.
	PhaseNotStarted PhaseStatus = "not-started"
	// PhaseAIWorking means an external AI process is producing the artifact.
	PhaseAIWorking PhaseStatus = "ai-working"
	// PhaseAwaitingUser means the phase is blocked on user input (answering questions).
	PhaseAwaitingUser PhaseStatus = "awaiting-user"
	// PhaseUserReviewing means the phase is blocked on user review of a document.
	PhaseUserReviewing PhaseStatus = "user-reviewing"
	// PhaseComplete means the phase finished and its artifact is final.
	PhaseComplete PhaseStatus = "complete"
)

// Valid reports whether s is one of the known phase statuses.
func (s PhaseStatus) Valid() bool {
	switch s {
	case PhaseNotStarted, PhaseAIWorking, PhaseAwaitingUser, PhaseUserReviewing, PhaseComplete:
		return true
	}
	return false
}

// AgentState is the aggregate status of an agent across its phase list.
type AgentState string

const (
	// AgentNotStarted means none of the agent's phases have begun.
	AgentNotStarted AgentState = "not-started"
	// AgentInProgress means at least one phase has begun but not all are complete.
	AgentInProgress AgentState = "in-progress"
	// AgentDone means every phase in the agent's list is complete.
	AgentDone AgentState = "complete"
)

// PhaseRef identifies a phase as a structured (agent, phase) pair. The
// composite "<agent>-<phaseName>" string exists only at the serialization
// boundary; internal code passes PhaseRef so phase names containing hyphens
// never need re-splitting.
type PhaseRef struct {
	Agent Agent
	Phase string
}

// String returns the composite display form, e.g. "pm-prd-review".
// The terminal state renders as "complete".
func (r PhaseRef) String() string {
	if r.Agent == AgentComplete {
		return string(AgentComplete)
	}
	return string(r.Agent) + "-" + r.Phase
}

// ParsePhaseRef resolves a composite phase string against the known agent
// names. Matching on the agent prefix (rather than splitting on the first
// hyphen) keeps phase names with hyphens intact.
func ParsePhaseRef(s string) (PhaseRef, error) {
	if s == string(AgentComplete) {
		return PhaseRef{Agent: AgentComplete}, nil
	}
	for _, agent := range []Agent{AgentPM, AgentUX, AgentEngineer} {
		prefix := string(agent) + "-"
		if strings.HasPrefix(s, prefix) {
			return PhaseRef{Agent: agent, Phase: strings.TrimPrefix(s, prefix)}, nil
		}
	}
	return PhaseRef{}, fmt.Errorf("cannot parse phase reference %q: unknown agent prefix", s)
}

// PhaseRecord tracks the lifecycle of a single phase.
type PhaseRecord struct {
	Status PhaseStatus `json:"status"`
	// StartedAt is set the first time Status leaves not-started and is never
	// overwritten afterward.
	StartedAt *time.Time `json:"startedAt,omitempty"`
	// CompletedAt is set the first time Status becomes complete and is never
	// overwritten afterward.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AgentStatus tracks one agent's progress through its phase list.
type AgentStatus struct {
	// CurrentPhase is the phase name currently active for this agent,
	// or empty if the agent has not started.
	CurrentPhase string `json:"currentPhase"`
	Status       AgentState `json:"status"`
	// CompletedAt is set once, the first time Status becomes complete.
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	Phases      map[string]*PhaseRecord `json:"phases"`
}

// HistoryEntry is one row of the append-only audit trail. Entries are appended
// exactly once per observed status change of a phase and never mutated.
type HistoryEntry struct {
	Phase       string      `json:"phase"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Status      PhaseStatus `json:"status"`
}

// ProjectStatus is the root persisted record for one project. It is mutated
// only by the transition and recovery engines and persisted only by the
// status store.
type ProjectStatus struct {
	ProjectID    string                 `json:"projectId"`
	CurrentAgent Agent                  `json:"currentAgent"`
	Agents       map[Agent]*AgentStatus `json:"agents"`
	History      []HistoryEntry         `json:"history"`
	// Settings and Icon are owned by external collaborators and passed
	// through unmodified.
	Settings      json.RawMessage `json:"settings,omitempty"`
	Icon          json.RawMessage `json:"icon,omitempty"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// statusJSON is the wire shape of ProjectStatus. The denormalized composite
// currentPhase string is produced here and only here.
type statusJSON struct {
	ProjectID     string                 `json:"projectId"`
	CurrentAgent  Agent                  `json:"currentAgent"`
	CurrentPhase  string                 `json:"currentPhase"`
	Agents        map[Agent]*AgentStatus `json:"agents"`
	History       []HistoryEntry         `json:"history"`
	Settings      json.RawMessage        `json:"settings,omitempty"`
	Icon          json.RawMessage        `json:"icon,omitempty"`
	LastUpdatedAt time.Time              `json:"lastUpdatedAt"`
}

// CurrentRef returns the structured reference to the project's current phase.
func (s *ProjectStatus) CurrentRef() PhaseRef {
	if s.CurrentAgent == AgentComplete {
		return PhaseRef{Agent: AgentComplete}
	}
	ref := PhaseRef{Agent: s.CurrentAgent}
	if as, ok := s.Agents[s.CurrentAgent]; ok {
		ref.Phase = as.CurrentPhase
	}
	return ref
}

// CurrentPhaseRecord returns the record for the project's current phase,
// or nil when the workflow is complete or the record does not exist yet.
func (s *ProjectStatus) CurrentPhaseRecord() *PhaseRecord {
	ref := s.CurrentRef()
	if ref.Agent == AgentComplete {
		return nil
	}
	as, ok := s.Agents[ref.Agent]
	if !ok {
		return nil
	}
	return as.Phases[ref.Phase]
}

// IsComplete reports whether the workflow has reached its terminal state.
func (s *ProjectStatus) IsComplete() bool {
	return s.CurrentAgent == AgentComplete
}

// MarshalJSON emits the wire shape, deriving the composite currentPhase
// string from the structured state.
func (s *ProjectStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{
		ProjectID:     s.ProjectID,
		CurrentAgent:  s.CurrentAgent,
		CurrentPhase:  s.CurrentRef().String(),
		Agents:        s.Agents,
		History:       s.History,
		Settings:      s.Settings,
		Icon:          s.Icon,
		LastUpdatedAt: s.LastUpdatedAt,
	})
}

// UnmarshalJSON parses the wire shape and re-derives the structured current
// phase, preferring the per-agent currentPhase over the denormalized
// composite string when the two disagree.
func (s *ProjectStatus) UnmarshalJSON(data []byte) error {
	var wire statusJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	s.ProjectID = wire.ProjectID
	s.CurrentAgent = wire.CurrentAgent
	s.Agents = wire.Agents
	s.History = wire.History
	s.Settings = wire.Settings
	s.Icon = wire.Icon
	s.LastUpdatedAt = wire.LastUpdatedAt

	if s.Agents == nil {
		s.Agents = make(map[Agent]*AgentStatus)
	}

	// Older records may carry a composite currentPhase for an agent whose
	// currentPhase field is empty. Backfill from the composite in that case.
	if s.CurrentAgent != AgentComplete && wire.CurrentPhase != "" {
		if ref, err := ParsePhaseRef(wire.CurrentPhase); err == nil && ref.Agent == s.CurrentAgent {
			if as, ok := s.Agents[s.CurrentAgent]; ok && as.CurrentPhase == "" {
				as.CurrentPhase = ref.Phase
			}
		}
	}

	return nil
}
