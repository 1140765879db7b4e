// Package domain defines the repair job that backfills folios and room
// charges for in-house stays after a crash or missed workflow step.
package domain

import (
	"context"
	"errors"
)

type RunRequest struct {
	// DryRun scans and counts without writing anything.
	DryRun bool
}

// ItemError is one stay or folio the run could not repair.
type ItemError struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// RunSummary reports what one recovery pass repaired. Every action is
// idempotent, so running twice over the same state repairs nothing new.
type RunSummary struct {
	DryRun        bool        `json:"dry_run"`
	StaysScanned  int         `json:"stays_scanned"`
	FoliosCreated int         `json:"folios_created"`
	ChargesPosted int         `json:"charges_posted"`
	Skipped       int         `json:"skipped"`
	Errors        []ItemError `json:"errors,omitempty"`
}

type Service interface {
	Run(context.Context, RunRequest) (RunSummary, error)
}

var ErrInvalidTenant = errors.New("invalid_tenant")
