package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PhaseSpec describes one phase in an agent's list. EntryStatus is the status
// a phase receives when the workflow advances into it; phases requiring a
// human start in awaiting-user or user-reviewing instead of not-started.
// An explicit metadata table here replaces suffix matching on phase names.
type PhaseSpec struct {
	Name          string      `yaml:"name"`
	RequiresHuman bool        `yaml:"requires_human"`
	EntryStatus   PhaseStatus `yaml:"entry_status"`
}

// AgentSpec describes one agent and its ordered phase list.
// Ordering matters: it defines the linear progression.
type AgentSpec struct {
	Name   Agent       `yaml:"name"`
	Phases []PhaseSpec `yaml:"phases"`
}

// Definition is the full workflow shape: the ordered agents and their phases.
type Definition struct {
	Agents []AgentSpec `yaml:"agents"`
}

// DefaultDefinition returns the built-in pm → ux → engineer workflow.
func DefaultDefinition() *Definition {
	questionPhases := func() []PhaseSpec {
		return []PhaseSpec{
			{Name: "questions-generate", EntryStatus: PhaseNotStarted},
			{Name: "questions-answer", RequiresHuman: true, EntryStatus: PhaseAwaitingUser},
		}
	}

	return &Definition{
		Agents: []AgentSpec{
			{
				Name: AgentPM,
				Phases: append(questionPhases(),
					PhaseSpec{Name: "prd-generate", EntryStatus: PhaseNotStarted},
					PhaseSpec{Name: "prd-review", RequiresHuman: true, EntryStatus: PhaseUserReviewing},
				),
			},
			{
				Name: AgentUX,
				Phases: append(questionPhases(),
					PhaseSpec{Name: "design-brief-generate", EntryStatus: PhaseNotStarted},
					PhaseSpec{Name: "design-brief-review", RequiresHuman: true, EntryStatus: PhaseUserReviewing},
				),
			},
			{
				Name: AgentEngineer,
				Phases: append(questionPhases(),
					PhaseSpec{Name: "spec-generate", EntryStatus: PhaseNotStarted},
					PhaseSpec{Name: "spec-review", RequiresHuman: true, EntryStatus: PhaseUserReviewing},
				),
			},
		},
	}
}

// LoadDefinition reads a workflow definition from a YAML file and validates
// it. This lets a checkout override the built-in phase lists without a code
// change.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition %s: %w", path, err)
	}

	return &def, nil
}

// Validate checks structural soundness: at least one agent, non-empty unique
// phase lists, no reuse of the terminal agent name, and sensible entry
// statuses.
func (d *Definition) Validate() error {
	if len(d.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	seenAgents := make(map[Agent]bool)
	for _, as := range d.Agents {
		if as.Name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if as.Name == AgentComplete {
			return fmt.Errorf("agent name %q is reserved for the terminal state", AgentComplete)
		}
		if seenAgents[as.Name] {
			return fmt.Errorf("duplicate agent %q", as.Name)
		}
		seenAgents[as.Name] = true

		if len(as.Phases) == 0 {
			return fmt.Errorf("agent %q has no phases", as.Name)
		}

		seenPhases := make(map[string]bool)
		for _, ps := range as.Phases {
			if ps.Name == "" {
				return fmt.Errorf("agent %q has a phase with empty name", as.Name)
			}
			if seenPhases[ps.Name] {
				return fmt.Errorf("agent %q has duplicate phase %q", as.Name, ps.Name)
			}
			seenPhases[ps.Name] = true

			entry := ps.EntryStatus
			if entry == "" {
				entry = PhaseNotStarted
			}
			if !entry.Valid() {
				return fmt.Errorf("agent %q phase %q has invalid entry status %q", as.Name, ps.Name, ps.EntryStatus)
			}
			if ps.RequiresHuman && entry != PhaseAwaitingUser && entry != PhaseUserReviewing {
				return fmt.Errorf("agent %q phase %q requires a human but enters as %q", as.Name, ps.Name, entry)
			}
		}
	}

	return nil
}

// AgentNames returns the agent names in workflow order.
func (d *Definition) AgentNames() []Agent {
	names := make([]Agent, 0, len(d.Agents))
	for _, as := range d.Agents {
		names = append(names, as.Name)
	}
	return names
}

// AgentSpecFor returns the spec for the named agent.
func (d *Definition) AgentSpecFor(agent Agent) (*AgentSpec, bool) {
	for i := range d.Agents {
		if d.Agents[i].Name == agent {
			return &d.Agents[i], true
		}
	}
	return nil, false
}

// PhaseSpecFor returns the spec for the named phase of the named agent.
func (d *Definition) PhaseSpecFor(agent Agent, phase string) (*PhaseSpec, bool) {
	as, ok := d.AgentSpecFor(agent)
	if !ok {
		return nil, false
	}
	for i := range as.Phases {
		if as.Phases[i].Name == phase {
			return &as.Phases[i], true
		}
	}
	return nil, false
}

// FirstAgent returns the first agent in workflow order.
func (d *Definition) FirstAgent() Agent {
	return d.Agents[0].Name
}

// FirstPhase returns the name of the first phase for the given agent.
func (d *Definition) FirstPhase(agent Agent) (string, bool) {
	as, ok := d.AgentSpecFor(agent)
	if !ok || len(as.Phases) == 0 {
		return "", false
	}
	return as.Phases[0].Name, true
}

// NextPhase returns the phase following the given one within the same agent.
// The second result is false when the given phase is the agent's last.
func (d *Definition) NextPhase(agent Agent, phase string) (string, bool) {
	as, ok := d.AgentSpecFor(agent)
	if !ok {
		return "", false
	}
	for i := range as.Phases {
		if as.Phases[i].Name == phase && i+1 < len(as.Phases) {
			return as.Phases[i+1].Name, true
		}
	}
	return "", false
}

// PrevPhase returns the phase preceding the given one within the same agent.
// The second result is false when the given phase is the agent's first.
func (d *Definition) PrevPhase(agent Agent, phase string) (string, bool) {
	as, ok := d.AgentSpecFor(agent)
	if !ok {
		return "", false
	}
	for i := range as.Phases {
		if as.Phases[i].Name == phase && i > 0 {
			return as.Phases[i-1].Name, true
		}
	}
	return "", false
}

// NextAgent returns the agent following the given one in workflow order.
// After the last agent it returns AgentComplete.
func (d *Definition) NextAgent(agent Agent) Agent {
	for i := range d.Agents {
		if d.Agents[i].Name == agent {
			if i+1 < len(d.Agents) {
				return d.Agents[i+1].Name
			}
			return AgentComplete
		}
	}
	return AgentComplete
}

// EntryStatusFor returns the status a phase receives when the workflow
// advances into it. Unknown phases default to not-started.
func (d *Definition) EntryStatusFor(agent Agent, phase string) PhaseStatus {
	ps, ok := d.PhaseSpecFor(agent, phase)
	if !ok || ps.EntryStatus == "" {
		return PhaseNotStarted
	}
	return ps.EntryStatus
}

// NewProjectStatus constructs the default initial record for a project:
// the first agent at its first phase, every phase not-started.
func (d *Definition) NewProjectStatus(projectID string, now func() time.Time) *ProjectStatus {
	agents := make(map[Agent]*AgentStatus, len(d.Agents))
	for _, as := range d.Agents {
		phases := make(map[string]*PhaseRecord, len(as.Phases))
		for _, ps := range as.Phases {
			phases[ps.Name] = &PhaseRecord{Status: PhaseNotStarted}
		}
		agents[as.Name] = &AgentStatus{
			Status: AgentNotStarted,
			Phases: phases,
		}
	}

	first := d.FirstAgent()
	firstPhase, _ := d.FirstPhase(first)
	agents[first].CurrentPhase = firstPhase

	return &ProjectStatus{
		ProjectID:     projectID,
		CurrentAgent:  first,
		Agents:        agents,
		History:       []HistoryEntry{},
		LastUpdatedAt: now(),
	}
}
