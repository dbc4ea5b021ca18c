package types

import "fmt"

// SourceKind identifies where a context block for an agent comes from.
type SourceKind string

const (
	// SourceUserInput selects the raw user input of the run.
	SourceUserInput SourceKind = "user_input"
	// SourceAgentOutput selects the final response of an earlier agent.
	SourceAgentOutput SourceKind = "agent_output"
)

// ContextSource is one entry in an agent's ordered context selection.
// AgentID is only meaningful when Kind is SourceAgentOutput.
type ContextSource struct {
	Kind    SourceKind `json:"kind" yaml:"kind"`
	AgentID int        `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
}

// OutputFormat tags the expected shape of an agent's response.
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
	FormatText     OutputFormat = "text"
)

// Valid reports whether the format is one of the known tags.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatMarkdown, FormatText:
		return true
	}
	return false
}

// RoleMeta describes the persona an agent speaks as.
type RoleMeta struct {
	Title    string `json:"title" yaml:"title"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// TaskSpec is the generation task attached to an agent.
type TaskSpec struct {
	// Template is the prompt template with {PLACEHOLDER} tokens.
	Template string `json:"template" yaml:"template"`
	// OutputFormat selects the response-format boilerplate.
	OutputFormat OutputFormat `json:"output_format" yaml:"output_format"`
	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Temperature is the sampling temperature in [0, 2].
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// Instructions is free-text guidance merged into the prompt.
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// AgentSpec is one agent descriptor in the pipeline. Specs are supplied
// once at run start and treated as immutable for that run.
type AgentSpec struct {
	ID             int             `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Role           RoleMeta        `json:"role" yaml:"role"`
	ContextSources []ContextSource `json:"context_sources,omitempty" yaml:"context_sources,omitempty"`
	Task           TaskSpec        `json:"task" yaml:"task"`
}

// ValidateAgents checks the structural invariants of an agent list:
// non-empty, positive unique ids, and every agent-output context source
// referencing a strictly lower id than its owner. The lower-id rule keeps
// the pipeline acyclic and topologically pre-ordered.
func ValidateAgents(agents []AgentSpec) error {
	if len(agents) == 0 {
		return NewError(ErrNoAgents, "agent list is empty")
	}
	seen := make(map[int]bool, len(agents))
	for _, a := range agents {
		if a.ID <= 0 {
			return NewError(ErrInvalidAgentOrder, fmt.Sprintf("agent %q has non-positive id %d", a.Name, a.ID))
		}
		if seen[a.ID] {
			return NewError(ErrInvalidAgentOrder, fmt.Sprintf("duplicate agent id %d", a.ID))
		}
		seen[a.ID] = true
	}
	for _, a := range agents {
		for _, src := range a.ContextSources {
			switch src.Kind {
			case SourceUserInput:
				// Always available.
			case SourceAgentOutput:
				if src.AgentID >= a.ID {
					return NewError(ErrInvalidAgentOrder,
						fmt.Sprintf("agent %d selects output of agent %d: context sources must reference a strictly lower id", a.ID, src.AgentID))
				}
				if !seen[src.AgentID] {
					return NewError(ErrInvalidAgentOrder,
						fmt.Sprintf("agent %d selects output of unknown agent %d", a.ID, src.AgentID))
				}
			default:
				return NewError(ErrInvalidAgentOrder,
					fmt.Sprintf("agent %d has unknown context source kind %q", a.ID, src.Kind))
			}
		}
	}
	return nil
}
