package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// snapshotAPI is the slice of the Azure SDK the disk source needs.
type snapshotAPI interface {
	CheckResourceGroup(ctx context.Context, resourceGroup string) error
	CreateSnapshot(ctx context.Context, resourceGroup, snapshotName, diskName string) error
	GrantAccess(ctx context.Context, resourceGroup, snapshotName string, durationInSeconds int32) (string, error)
	CheckAccess(ctx context.Context, sasURL string) error
}

type armAPI struct {
	clientFactory *armcompute.ClientFactory
}

func newARMAPI(subscriptionID string, credential azcore.TokenCredential) (*armAPI, error) {
	clientFactory, err := armcompute.NewClientFactory(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client factory: %w", err)
	}
	return &armAPI{clientFactory: clientFactory}, nil
}

func (a *armAPI) CheckResourceGroup(ctx context.Context, resourceGroup string) error {
	pager := a.clientFactory.NewDisksClient().NewListByResourceGroupPager(resourceGroup, nil)
	if _, err := pager.NextPage(ctx); err != nil {
		return fmt.Errorf("failed to list disks in resource group %s: %w", resourceGroup, err)
	}
	return nil
}

func (a *armAPI) CreateSnapshot(ctx context.Context, resourceGroup, snapshotName, diskName string) error {
	disk, err := a.clientFactory.NewDisksClient().Get(ctx, resourceGroup, diskName, nil)
	if err != nil {
		return fmt.Errorf("failed to get disk: %w", err)
	}
	createOption := armcompute.DiskCreateOptionCopy
	poller, err := a.clientFactory.NewSnapshotsClient().BeginCreateOrUpdate(ctx, resourceGroup, snapshotName,
		armcompute.Snapshot{
			Location: disk.Location,
			Properties: &armcompute.SnapshotProperties{
				CreationData: &armcompute.CreationData{
					CreateOption:     &createOption,
					SourceResourceID: disk.ID,
				},
			},
		}, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot creation: %w", err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

func (a *armAPI) GrantAccess(ctx context.Context, resourceGroup, snapshotName string, durationInSeconds int32) (string, error) {
	accessLevel := armcompute.AccessLevelRead
	poller, err := a.clientFactory.NewSnapshotsClient().BeginGrantAccess(ctx, resourceGroup, snapshotName,
		armcompute.GrantAccessData{
			Access:            &accessLevel,
			DurationInSeconds: &durationInSeconds,
		}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin grant access: %w", err)
	}
	result, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to grant access: %w", err)
	}
	if result.AccessSAS == nil {
		return "", nil
	}
	return *result.AccessSAS, nil
}

func (a *armAPI) CheckAccess(ctx context.Context, sasURL string) error {
	blobClient, err := blob.NewClientWithNoCredential(sasURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create blob client: %w", err)
	}
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("snapshot SAS URL is not readable: %w", err)
	}
	return nil
}
