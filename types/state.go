package types

import "time"

// RunStatus is the overall status of a pipeline run.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusError     RunStatus = "error"
)

// AgentPhase is the coarse, externally observable state of one agent
// within a run. Phases advance strictly in declaration order; Failed is
// the only out-of-band phase and is entered on backend errors or timeout.
type AgentPhase string

const (
	PhaseIdle          AgentPhase = "idle"
	PhasePromptDraft   AgentPhase = "prompt_draft"
	PhasePromptOK      AgentPhase = "prompt_ok"
	PhaseGenerating    AgentPhase = "generating"
	PhaseResponseDraft AgentPhase = "response_draft"
	PhaseResponseOK    AgentPhase = "response_ok"
	PhaseComplete      AgentPhase = "complete"
	PhaseFailed        AgentPhase = "failed"
)

// AgentRuntime holds the mutable per-agent state of the active run.
// It is owned by the pipeline controller and mutated only through the
// defined transition operations, never directly by callers.
type AgentRuntime struct {
	Phase            AgentPhase `json:"phase"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Prompt           string     `json:"prompt,omitempty"`
	Response         string     `json:"response,omitempty"`
	PromptApproved   bool       `json:"prompt_approved,omitempty"`
	ResponseApproved bool       `json:"response_approved,omitempty"`
}

// Clone returns a copy of the runtime state.
func (r *AgentRuntime) Clone() AgentRuntime {
	if r == nil {
		return AgentRuntime{Phase: PhaseIdle}
	}
	return *r
}

// HistoryStatus is the status of a history entry.
type HistoryStatus string

const (
	HistoryPending   HistoryStatus = "pending"
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
	HistoryReviewed  HistoryStatus = "reviewed"
)

// HistoryEntry is one record of the append-only run log. Entries are
// appended in commit order and are immutable once completed, except for
// explicit user edit/reject actions which change the status to Reviewed
// or Failed.
type HistoryEntry struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	AgentID   int           `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Status    HistoryStatus `json:"status"`
}
