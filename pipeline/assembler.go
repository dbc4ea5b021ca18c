package pipeline

import (
	"github.com/relabs-ai/agentchain/prompt"
	"github.com/relabs-ai/agentchain/types"
)

// assembleContext builds the prompt context for one agent from the run
// state. Only agents whose phase is Complete contribute a response; drafts
// and partially approved content never leak into downstream prompts.
// Caller holds the controller lock.
func assembleContext(r *run, agent types.AgentSpec) *prompt.Context {
	pctx := &prompt.Context{
		UserInput:  r.userInput,
		Responses:  make(map[int]string),
		AgentNames: make(map[int]string, len(r.agents)),
		History:    make([]types.HistoryEntry, len(r.history)),
		SessionID:  r.sessionID,
		AgentID:    agent.ID,
		StepNumber: r.cursor + 1,
		TotalSteps: len(r.agents),
	}
	for id, rt := range r.runtime {
		if rt.Phase == types.PhaseComplete {
			pctx.Responses[id] = rt.Response
		}
	}
	for _, a := range r.agents {
		pctx.AgentNames[a.ID] = a.Name
	}
	copy(pctx.History, r.history)
	return pctx
}
