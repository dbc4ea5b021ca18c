// Package pipeline drives an ordered sequence of agents through a
// fine-grained execution pipeline: context assembly, prompt instantiation,
// a timeout-guarded completion call, and optional human approval gates in
// manual mode. The Controller owns all run state; callers observe it
// through immutable snapshots and mutate it only through the action
// surface (Start, Pause, Resume, Stop, ProceedToNext, Retry, approvals,
// edits). Failures surface as run-state fields, never as panics.
package pipeline
