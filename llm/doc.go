// Package llm defines the completion-backend boundary of the orchestrator:
// the Provider interface invoked once per agent per pipeline pass, plus
// composable wrappers for timeout enforcement and client-side rate limiting.
//
// The orchestrator never talks to a backend directly; it only sees Provider,
// so tests substitute testutil/mocks.CompletionProvider and production wires
// HTTPProvider (an OpenAI-compatible chat-completions client).
package llm
