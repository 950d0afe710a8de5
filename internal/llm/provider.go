// Package llm defines the LLMProvider collaborator contract from §6.3 and a
// concrete Gemini-backed implementation. internal/llmexec depends only on
// the Provider interface, so a test double can stand in without touching
// the network.
package llm

import "context"

// Provider is the external interface §6.3 names: `call` dispatches one
// prompt/reply round trip, `set_retry_hint` lets the retry FSM steer the
// next attempt, and `last_call_info` exposes diagnostics (latency, token
// usage, raw reply) for logging/debugging.
type Provider interface {
	// Call sends system and user prompt text for the given scene
	// ("GENERAL", "BRANCH", "LOOP") and returns the raw reply text.
	Call(ctx context.Context, system, user, scene string) (string, error)

	// SetRetryHint records a hint to be appended to the next Call's user
	// prompt (§4.6 step 5's "retry-hint-consumption sentence"); a provider
	// applies it exactly once then clears it.
	SetRetryHint(hint string)

	// LastCallInfo reports metadata about the most recent Call: at minimum
	// "latency_ms", "raw_reply", and "scene".
	LastCallInfo() map[string]any
}
