// Package oci exports volume images staged in OCI Object Storage through pre-authenticated requests.
package oci

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
)

const parLifetime = 2 * time.Hour

// objectStorage is the slice of the Object Storage client the source needs.
type objectStorage interface {
	GetNamespace(ctx context.Context, request objectstorage.GetNamespaceRequest) (objectstorage.GetNamespaceResponse, error)
	GetBucket(ctx context.Context, request objectstorage.GetBucketRequest) (objectstorage.GetBucketResponse, error)
	HeadObject(ctx context.Context, request objectstorage.HeadObjectRequest) (objectstorage.HeadObjectResponse, error)
	CreatePreauthenticatedRequest(ctx context.Context, request objectstorage.CreatePreauthenticatedRequestRequest) (objectstorage.CreatePreauthenticatedRequestResponse, error)
}

// ObjectSource serves <volume>.vhd objects of a bucket as read-only pre-authenticated URLs.
type ObjectSource struct {
	client        objectStorage
	region        string
	namespace     string
	bucketName    string
	compartmentID string
	logger        *logger.Logger
	now           func() time.Time
}

// NewObjectSource creates an object source using the default OCI configuration provider.
func NewObjectSource(region, namespace, bucketName, compartmentID string, log *logger.Logger) (*ObjectSource, error) {
	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(common.DefaultConfigProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	client.SetRegion(region)
	return newObjectSource(client, region, namespace, bucketName, compartmentID, log), nil
}

func newObjectSource(client objectStorage, region, namespace, bucketName, compartmentID string, log *logger.Logger) *ObjectSource {
	return &ObjectSource{
		client:        client,
		region:        region,
		namespace:     namespace,
		bucketName:    bucketName,
		compartmentID: compartmentID,
		logger:        log,
		now:           time.Now,
	}
}

// Factory builds an ObjectSource from the job configuration.
func Factory(_ context.Context, env hypervisor.Env) (hypervisor.SourcePlatform, error) {
	cfg := env.Config
	return NewObjectSource(cfg.OCIRegion, cfg.OCINamespace, cfg.OCIBucketName, cfg.OCICompartmentID, env.Logger)
}

func (o *ObjectSource) Name() string { return "OCI" }

// PrepareExportArea resolves the namespace and checks that the bucket exists.
func (o *ObjectSource) PrepareExportArea(ctx context.Context, _ model.Host) error {
	if o.namespace == "" {
		resp, err := o.client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
		if err != nil {
			return fmt.Errorf("failed to get namespace: %w", err)
		}
		o.namespace = *resp.Value
	}
	resp, err := o.client.GetBucket(ctx, objectstorage.GetBucketRequest{
		NamespaceName: &o.namespace,
		BucketName:    &o.bucketName,
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("bucket %s not found in namespace %s", o.bucketName, o.namespace)
		}
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if o.compartmentID != "" && resp.Bucket.CompartmentId != nil && *resp.Bucket.CompartmentId != o.compartmentID {
		return fmt.Errorf("bucket %s belongs to compartment %s, not %s", o.bucketName, *resp.Bucket.CompartmentId, o.compartmentID)
	}
	return nil
}

// RequestTransferURL returns a pre-authenticated URL for <volumeID>.vhd, or "" when the object is missing.
func (o *ObjectSource) RequestTransferURL(ctx context.Context, volumeID string, _ model.Host) (string, error) {
	objectName := volumeID + ".vhd"
	_, err := o.client.HeadObject(ctx, objectstorage.HeadObjectRequest{
		NamespaceName: &o.namespace,
		BucketName:    &o.bucketName,
		ObjectName:    &objectName,
	})
	if err != nil {
		if isNotFound(err) {
			o.logger.Debugf("Object %s not found in bucket %s", objectName, o.bucketName)
			return "", nil
		}
		return "", fmt.Errorf("failed to check object %s: %w", objectName, err)
	}

	parName := fmt.Sprintf("hvshift-%s", volumeID)
	resp, err := o.client.CreatePreauthenticatedRequest(ctx, objectstorage.CreatePreauthenticatedRequestRequest{
		NamespaceName: &o.namespace,
		BucketName:    &o.bucketName,
		CreatePreauthenticatedRequestDetails: objectstorage.CreatePreauthenticatedRequestDetails{
			Name:        &parName,
			ObjectName:  &objectName,
			AccessType:  objectstorage.CreatePreauthenticatedRequestDetailsAccessTypeObjectread,
			TimeExpires: &common.SDKTime{Time: o.now().Add(parLifetime)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create pre-authenticated request for %s: %w", objectName, err)
	}
	if resp.PreauthenticatedRequest.AccessUri == nil || *resp.PreauthenticatedRequest.AccessUri == "" {
		return "", nil
	}
	return fmt.Sprintf("https://objectstorage.%s.oraclecloud.com%s", o.region, *resp.PreauthenticatedRequest.AccessUri), nil
}

func isNotFound(err error) bool {
	var serviceErr common.ServiceError
	return errors.As(err, &serviceErr) && serviceErr.GetHTTPStatusCode() == http.StatusNotFound
}
