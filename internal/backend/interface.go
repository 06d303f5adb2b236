package backend

import (
	"context"

	"tcontrol/internal/ledger"
)

// Backend is the full set of ledger operations the HTTP layer needs.
type Backend interface {
	ledger.JobStore
	ledger.SettingsStore
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
