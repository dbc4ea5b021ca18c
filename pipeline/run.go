package pipeline

import (
	"github.com/relabs-ai/agentchain/types"
)

// Snapshot is an immutable copy of the run state, emitted to listeners
// after every transition. Maps and slices are copies; callers may retain
// snapshots freely.
type Snapshot struct {
	Active       bool                       `json:"active"`
	Status       types.RunStatus            `json:"status"`
	Mode         Mode                       `json:"mode"`
	SessionID    string                     `json:"session_id"`
	UserInput    string                     `json:"user_input"`
	CurrentAgent int                        `json:"current_agent"`
	StepNumber   int                        `json:"step_number"`
	TotalSteps   int                        `json:"total_steps"`
	Error        string                     `json:"error,omitempty"`
	Agents       map[int]types.AgentRuntime `json:"agents"`
	History      []types.HistoryEntry       `json:"history"`
	Retries      map[int]int                `json:"retries,omitempty"`
}

// run is the internal state of one conversation run. All access goes
// through the Controller's mutex; nothing here is safe to share.
type run struct {
	sessionID string
	userInput string
	agents    []types.AgentSpec
	byID      map[int]types.AgentSpec

	cursor  int // index into agents, -1 after stop
	status  types.RunStatus
	errMsg  string
	active  bool
	runtime map[int]*types.AgentRuntime
	steps   map[int]*stepState
	history []types.HistoryEntry
	retries map[int]int

	// processing guards against duplicate completion calls for the same
	// agent from overlapping triggers.
	processing bool
}

func newRun(sessionID, userInput string, agents []types.AgentSpec) *run {
	r := &run{
		sessionID: sessionID,
		userInput: userInput,
		agents:    agents,
		byID:      make(map[int]types.AgentSpec, len(agents)),
		status:    types.StatusRunning,
		active:    true,
		runtime:   make(map[int]*types.AgentRuntime, len(agents)),
		steps:     make(map[int]*stepState, len(agents)),
		retries:   make(map[int]int),
	}
	for _, a := range agents {
		r.byID[a.ID] = a
		r.runtime[a.ID] = &types.AgentRuntime{Phase: types.PhaseIdle}
		r.steps[a.ID] = newStepState()
	}
	return r
}

// current returns the agent under the cursor.
func (r *run) current() (types.AgentSpec, bool) {
	if r.cursor < 0 || r.cursor >= len(r.agents) {
		return types.AgentSpec{}, false
	}
	return r.agents[r.cursor], true
}

// onLastAgent reports whether the cursor sits on the final agent.
func (r *run) onLastAgent() bool {
	return r.cursor == len(r.agents)-1
}

// historyIndex returns the index of the most recent history entry for an
// agent, or -1.
func (r *run) historyIndex(agentID int) int {
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].AgentID == agentID {
			return i
		}
	}
	return -1
}

// dropHistory removes every pending or failed entry for an agent,
// preserving order of the rest.
func (r *run) dropHistory(agentID int) {
	kept := r.history[:0]
	for _, h := range r.history {
		if h.AgentID == agentID && (h.Status == types.HistoryPending || h.Status == types.HistoryFailed) {
			continue
		}
		kept = append(kept, h)
	}
	r.history = kept
}

func (r *run) snapshot(mode Mode) Snapshot {
	snap := Snapshot{
		Active:     r.active,
		Status:     r.status,
		Mode:       mode,
		SessionID:  r.sessionID,
		UserInput:  r.userInput,
		StepNumber: r.cursor + 1,
		TotalSteps: len(r.agents),
		Error:      r.errMsg,
		Agents:     make(map[int]types.AgentRuntime, len(r.runtime)),
		History:    make([]types.HistoryEntry, len(r.history)),
		Retries:    make(map[int]int, len(r.retries)),
	}
	if a, ok := r.current(); ok {
		snap.CurrentAgent = a.ID
	}
	for id, rt := range r.runtime {
		snap.Agents[id] = rt.Clone()
	}
	copy(snap.History, r.history)
	for id, n := range r.retries {
		snap.Retries[id] = n
	}
	return snap
}
