package domain

import "fmt"

// PipelineStatus is the per-(member, account) run state stored in the cache.
// Legal transitions are FETCHING → CLASSIFYING → ANALYZING → DONE; any state
// may move to FAILED. The cache layer validates transitions on write.
type PipelineStatus string

const (
	StatusFetching    PipelineStatus = "FETCHING"
	StatusClassifying PipelineStatus = "CLASSIFYING"
	StatusAnalyzing   PipelineStatus = "ANALYZING"
	StatusDone        PipelineStatus = "DONE"
	StatusFailed      PipelineStatus = "FAILED"
)

var statusOrder = map[PipelineStatus]int{
	StatusFetching:    0,
	StatusClassifying: 1,
	StatusAnalyzing:   2,
	StatusDone:        3,
}

// Valid reports whether s is one of the defined status values.
func (s PipelineStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal step of the
// pipeline state machine. FAILED is reachable from every state and terminal.
// A fresh run may re-enter FETCHING from either terminal state.
func (s PipelineStatus) CanTransitionTo(next PipelineStatus) bool {
	if !next.Valid() {
		return false
	}
	// Self-transitions are allowed so redelivered messages can re-assert the
	// state they already set.
	if next == s {
		return true
	}
	if next == StatusFailed {
		return true
	}
	if s == StatusDone || s == StatusFailed {
		return next == StatusFetching
	}
	cur, ok := statusOrder[s]
	if !ok {
		return next == StatusFetching
	}
	return statusOrder[next] == cur+1
}

// ParsePipelineStatus converts a raw cache string back into a status value.
func ParsePipelineStatus(raw string) (PipelineStatus, error) {
	s := PipelineStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown pipeline status %q", raw)
	}
	return s, nil
}
