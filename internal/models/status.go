package models

import (
	"fmt"
	"strings"
)

// ExecutionStatus is the durable lifecycle state of a JobExecution.
// English enum names are used in code; localized human-readable labels appear
// only in the execution's status_detail field.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusSuccess   ExecutionStatus = "SUCCESS"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusCancelled ExecutionStatus = "CANCELLED"
	StatusTimeout   ExecutionStatus = "TIMEOUT"
	StatusSkipped   ExecutionStatus = "SKIPPED"
)

// legacyStatusMap converts historical status strings (imported rows) to the
// durable enum.
var legacyStatusMap = map[string]ExecutionStatus{
	"pending":     StatusPending,
	"waiting":     StatusPending,
	"processing":  StatusRunning,
	"running":     StatusRunning,
	"in_progress": StatusRunning,
	"success":     StatusSuccess,
	"completed":   StatusSuccess,
	"finished":    StatusSuccess,
	"failed":      StatusFailed,
	"error":       StatusFailed,
	"cancelled":   StatusCancelled,
	"timeout":     StatusTimeout,
	"skipped":     StatusSkipped,
}

// ParseStatus resolves a stored status value, accepting both the durable enum
// and the legacy lowercase vocabulary.
func ParseStatus(value string) (ExecutionStatus, error) {
	switch ExecutionStatus(value) {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusCancelled, StatusTimeout, StatusSkipped:
		return ExecutionStatus(value), nil
	}
	if status, ok := legacyStatusMap[strings.ToLower(value)]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown execution status %q", value)
}

// IsTerminal reports whether the status is a terminal state. Terminal states
// are never left.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// allowedTransitions is the full set of legal status edges:
// PENDING -> RUNNING, PENDING -> CANCELLED,
// RUNNING -> SUCCESS, RUNNING -> FAILED, RUNNING -> TIMEOUT.
var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusSuccess, StatusFailed, StatusTimeout},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to ExecutionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
