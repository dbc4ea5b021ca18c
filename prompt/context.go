package prompt

import "github.com/relabs-ai/agentchain/types"

// Context is the assembled input payload for one agent's prompt: the raw
// user input, the final responses of completed upstream agents keyed by
// agent id, the ordered history log, and run metadata. The pipeline's
// assembler guarantees Responses only ever contains output of agents that
// reached the Complete phase — partially approved drafts never leak in.
type Context struct {
	UserInput  string                 `json:"user_input"`
	Responses  map[int]string         `json:"responses"`
	AgentNames map[int]string         `json:"agent_names,omitempty"`
	History    []types.HistoryEntry   `json:"history,omitempty"`
	SessionID  string                 `json:"session_id"`
	AgentID    int                    `json:"agent_id"`
	StepNumber int                    `json:"step_number"`
	TotalSteps int                    `json:"total_steps"`
}

// Response returns the completed response for an agent id and whether one
// exists.
func (c *Context) Response(agentID int) (string, bool) {
	if c.Responses == nil {
		return "", false
	}
	r, ok := c.Responses[agentID]
	return r, ok
}
