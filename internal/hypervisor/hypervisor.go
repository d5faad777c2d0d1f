// Package hypervisor defines the capabilities a source or target platform exposes to a migration
// and implements them for XenServer and KVM hosts reached over SSH.
package hypervisor

import (
	"context"

	"github.com/codebypatrickleung/hvshift/internal/model"
)

// SourcePlatform exports volumes so the target host can download them.
type SourcePlatform interface {
	Name() string
	// PrepareExportArea makes host ready to serve exported volumes.
	PrepareExportArea(ctx context.Context, host model.Host) error
	// RequestTransferURL exports volumeID and returns the URL it can be fetched from.
	// An empty URL means the export produced nothing.
	RequestTransferURL(ctx context.Context, volumeID string, host model.Host) (string, error)
}

// TargetPlatform receives, converts and places volumes on a host.
type TargetPlatform interface {
	Name() string
	ResolveMountPoint(ctx context.Context, host model.Host) (string, error)
	EnsureMigrationDirectory(ctx context.Context, host model.Host) error
	Fetch(ctx context.Context, host model.Host, url, name string) error
	ConvertToNativeFormat(ctx context.Context, host model.Host, name string) error
	GrowPartition(ctx context.Context, host model.Host, name string, paddingBytes int64) error
	InjectDrivers(ctx context.Context, host model.Host, name string) error
	Place(ctx context.Context, host model.Host, name string, injected bool) error
	PushHelperScripts(ctx context.Context, host model.Host, scripts []model.HelperScript) error
}
