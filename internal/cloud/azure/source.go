// Package azure exports Azure managed disks so a KVM host can download them.
package azure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
)

const (
	sasDurationSeconds    = 7200
	maxSnapshotNameLength = 80
)

// DiskSource exports a managed disk through a read-only snapshot SAS URL.
// Volume paths are managed disk names. Snapshots are left in place.
type DiskSource struct {
	resourceGroup string
	api           snapshotAPI
	logger        *logger.Logger
	now           func() time.Time
}

// NewDiskSource creates a disk source using the default Azure credential chain.
func NewDiskSource(subscriptionID, resourceGroup string, log *logger.Logger) (*DiskSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	api, err := newARMAPI(subscriptionID, cred)
	if err != nil {
		return nil, err
	}
	return newDiskSource(resourceGroup, api, log), nil
}

func newDiskSource(resourceGroup string, api snapshotAPI, log *logger.Logger) *DiskSource {
	return &DiskSource{resourceGroup: resourceGroup, api: api, logger: log, now: time.Now}
}

// Factory builds a DiskSource from the job configuration.
func Factory(_ context.Context, env hypervisor.Env) (hypervisor.SourcePlatform, error) {
	return NewDiskSource(env.Config.AzureSubscriptionID, env.Config.AzureResourceGroup, env.Logger)
}

func (d *DiskSource) Name() string { return "Azure" }

// PrepareExportArea checks that the resource group is readable.
func (d *DiskSource) PrepareExportArea(ctx context.Context, _ model.Host) error {
	return d.api.CheckResourceGroup(ctx, d.resourceGroup)
}

// RequestTransferURL snapshots the disk and returns a SAS URL valid for two hours.
func (d *DiskSource) RequestTransferURL(ctx context.Context, volumeID string, _ model.Host) (string, error) {
	snapshotName := SnapshotName(volumeID, d.now())

	d.logger.Infof("Creating snapshot: %s", snapshotName)
	if err := d.api.CreateSnapshot(ctx, d.resourceGroup, snapshotName, volumeID); err != nil {
		return "", err
	}
	d.logger.Successf("✓ Snapshot created: %s", snapshotName)

	sasURL, err := d.api.GrantAccess(ctx, d.resourceGroup, snapshotName, sasDurationSeconds)
	if err != nil {
		return "", err
	}
	if sasURL == "" {
		return "", nil
	}
	if err := d.api.CheckAccess(ctx, sasURL); err != nil {
		return "", err
	}
	return sasURL, nil
}

// SnapshotName returns ss-<disk>-<base36 unix time>, truncating the disk name to fit Azure's limit.
func SnapshotName(diskName string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 36)
	maxDiskNameLen := maxSnapshotNameLength - 4 - len(timestamp)
	if len(diskName) > maxDiskNameLen {
		diskName = diskName[:maxDiskNameLen]
	}
	return fmt.Sprintf("ss-%s-%s", diskName, timestamp)
}
