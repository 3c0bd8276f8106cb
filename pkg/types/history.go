// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Status is the terminal state of a recorded conversion.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// HistoryEntry is one conversion attempt as kept in the journal.
type HistoryEntry struct {
	ID       string     `json:"id" yaml:"id"`
	Device   string     `json:"device" yaml:"device"`
	Source   Filesystem `json:"source,omitempty" yaml:"source,omitempty"`
	Target   Filesystem `json:"target" yaml:"target"`
	Plan     Plan       `json:"plan,omitempty" yaml:"plan,omitempty"`
	Status   Status     `json:"status" yaml:"status"`
	Kind     ErrorKind  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Message  string     `json:"message,omitempty" yaml:"message,omitempty"`
	Started  time.Time  `json:"started" yaml:"started"`
	Finished time.Time  `json:"finished" yaml:"finished"`
}

// Duration returns how long the attempt ran.
func (h HistoryEntry) Duration() time.Duration {
	return h.Finished.Sub(h.Started)
}
