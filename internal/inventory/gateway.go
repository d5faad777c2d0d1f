// Package inventory reads and updates the CloudStack inventory through its API and database.
package inventory

import (
	"context"
	"errors"

	"github.com/codebypatrickleung/hvshift/internal/model"
)

// ErrNotFound is returned when an inventory lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Gateway is everything a migration needs from the cloud inventory.
type Gateway interface {
	FindVirtualMachine(ctx context.Context, instanceName string, projectVM bool) (model.VirtualMachine, error)
	FindCluster(ctx context.Context, name string) (model.Cluster, error)
	ListClusterHosts(ctx context.Context, clusterID string) ([]model.Host, error)
	FindHostByName(ctx context.Context, name string) (model.Host, error)
	FindStoragePool(ctx context.Context, id string) (model.StoragePool, error)
	// SelectStoragePool returns the named pool of the cluster, or its first pool when name is empty.
	SelectStoragePool(ctx context.Context, clusterID, name string) (model.StoragePool, error)
	FindTemplate(ctx context.Context, name string) (model.Template, error)
	GetServiceOffering(ctx context.Context, id string) (model.ServiceOffering, error)
	// ListVolumes returns the VM's volumes in inventory order.
	ListVolumes(ctx context.Context, instanceName string) ([]model.Volume, error)
	VolumeAttachmentState(ctx context.Context, volumeID string) (model.PowerState, error)
	// StopVirtualMachine stops the VM and returns the state reported in the same response.
	StopVirtualMachine(ctx context.Context, id string) (string, error)
	// StartVirtualMachine starts the VM and returns the state reported in the same response.
	StartVirtualMachine(ctx context.Context, id string) (string, error)
	CommitMigration(ctx context.Context, commit model.Commit) error
	Close() error
}
