// Package workflow defines interfaces for workflow abstraction.
package workflow

import (
	"context"
	"io"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/logger"
)

// Handler defines the interface for a workflow handler that orchestrates migration.
// Each workflow handler implements a specific source-to-target migration path.
type Handler interface {
	// Name returns the name of the workflow (e.g., "XenServer to KVM Migration")
	Name() string

	// SourcePlatform returns the source platform identifier
	SourcePlatform() string

	// TargetPlatform returns the target platform identifier
	TargetPlatform() string

	// Initialize prepares the workflow handler with configuration and logger
	Initialize(cfg *config.Config, log *logger.Logger) error

	// Execute runs the complete migration workflow
	Execute(ctx context.Context) error
}

var (
	_ Handler   = (*MigrationHandler)(nil)
	_ io.Closer = (*MigrationHandler)(nil)
)
