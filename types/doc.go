// Package types provides the core types shared across agentchain.
// This package has ZERO dependencies on other agentchain packages to avoid
// circular imports. All other packages should import types from here.
//
// The main groups are:
//   - AgentSpec and friends: the read-only agent descriptors a pipeline runs
//   - RunStatus, AgentPhase, AgentRuntime: externally observable run state
//   - HistoryEntry: the append-only audit log record
//   - Error / ErrorCode: the structured error taxonomy
//   - TokenUsage / Tokenizer: token accounting
package types
