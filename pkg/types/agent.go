// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AgentResponse is the uniform envelope returned by every pipeline stage.
//
// Stages never report Success=false for call or parse problems: they
// substitute a fallback Data of the same type and set Fallback. When the
// substitution was caused by a call-level failure (timeout, transport,
// quota) Error carries the reason so the orchestrator can escalate.
type AgentResponse[T any] struct {
	Success  bool   `json:"success"`
	Data     T      `json:"data"`
	Error    string `json:"error,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// HardFailure reports whether the stage substituted its fallback because the
// underlying call failed.
func (r AgentResponse[T]) HardFailure() bool {
	return r.Error != ""
}

// Ok builds a successful envelope.
func Ok[T any](data T) AgentResponse[T] {
	return AgentResponse[T]{Success: true, Data: data}
}

// Recovered builds an envelope carrying fallback data. cause is nil for a
// soft (content-shape) failure.
func Recovered[T any](data T, cause error) AgentResponse[T] {
	r := AgentResponse[T]{Success: true, Data: data, Fallback: true}
	if cause != nil {
		r.Error = cause.Error()
	}
	return r
}
