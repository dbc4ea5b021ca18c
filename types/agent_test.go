package types

import "testing"

func specs(ids ...int) []AgentSpec {
	out := make([]AgentSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, AgentSpec{ID: id, Name: "agent"})
	}
	return out
}

func TestValidateAgents_Empty(t *testing.T) {
	t.Parallel()

	err := ValidateAgents(nil)
	if GetErrorCode(err) != ErrNoAgents {
		t.Fatalf("expected NO_AGENTS, got %v", err)
	}
}

func TestValidateAgents_DuplicateAndNonPositive(t *testing.T) {
	t.Parallel()

	if err := ValidateAgents(specs(1, 1)); GetErrorCode(err) != ErrInvalidAgentOrder {
		t.Fatalf("expected INVALID_AGENT_ORDER for duplicates, got %v", err)
	}
	if err := ValidateAgents(specs(0)); GetErrorCode(err) != ErrInvalidAgentOrder {
		t.Fatalf("expected INVALID_AGENT_ORDER for id 0, got %v", err)
	}
}

func TestValidateAgents_SourceOrdering(t *testing.T) {
	t.Parallel()

	agents := specs(1, 2)
	agents[1].ContextSources = []ContextSource{
		{Kind: SourceUserInput},
		{Kind: SourceAgentOutput, AgentID: 1},
	}
	if err := ValidateAgents(agents); err != nil {
		t.Fatalf("expected valid pipeline, got %v", err)
	}

	// Forward reference: agent 1 selecting agent 2's output.
	agents[0].ContextSources = []ContextSource{{Kind: SourceAgentOutput, AgentID: 2}}
	if err := ValidateAgents(agents); GetErrorCode(err) != ErrInvalidAgentOrder {
		t.Fatalf("expected INVALID_AGENT_ORDER for forward reference, got %v", err)
	}

	// Self reference.
	agents[0].ContextSources = []ContextSource{{Kind: SourceAgentOutput, AgentID: 1}}
	if err := ValidateAgents(agents); GetErrorCode(err) != ErrInvalidAgentOrder {
		t.Fatalf("expected INVALID_AGENT_ORDER for self reference, got %v", err)
	}

	// Unknown source kind.
	agents[0].ContextSources = []ContextSource{{Kind: "mystery"}}
	if err := ValidateAgents(agents); GetErrorCode(err) != ErrInvalidAgentOrder {
		t.Fatalf("expected INVALID_AGENT_ORDER for unknown kind, got %v", err)
	}
}
