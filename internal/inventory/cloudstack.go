package inventory

import (
	"context"
	"fmt"

	"github.com/apache/cloudstack-go/v2/cloudstack"
	"github.com/codebypatrickleung/hvshift/internal/common"
	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
)

const routingHost = "Routing"

// CloudStack is the Gateway backed by the CloudStack API and database.
type CloudStack struct {
	cs     *cloudstack.CloudStackClient
	db     *Database
	logger *logger.Logger
}

var _ Gateway = (*CloudStack)(nil)

// NewCloudStack connects to the CloudStack API and database described by cfg.
func NewCloudStack(cfg *config.Config, log *logger.Logger) (*CloudStack, error) {
	db, err := OpenMySQL(cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	log.Debugf("API address: %s", cfg.CloudStackURL)
	log.Debugf("API key: %s", common.MaskSecret(cfg.CloudStackAPIKey))
	cs := cloudstack.NewAsyncClient(cfg.CloudStackURL, cfg.CloudStackAPIKey, cfg.CloudStackSecretKey, cfg.CloudStackVerifySSL)
	return &CloudStack{cs: cs, db: db, logger: log}, nil
}

// Close closes the database connection.
func (c *CloudStack) Close() error {
	return c.db.Close()
}

// FindVirtualMachine resolves the VM by instance name in the database and reads it from the API.
func (c *CloudStack) FindVirtualMachine(ctx context.Context, instanceName string, projectVM bool) (model.VirtualMachine, error) {
	uuid, err := c.db.VirtualMachineUUID(ctx, instanceName)
	if err != nil {
		return model.VirtualMachine{}, err
	}

	p := c.cs.VirtualMachine.NewListVirtualMachinesParams()
	p.SetId(uuid)
	p.SetListall(true)
	if projectVM {
		p.SetProjectid("-1")
	}
	resp, err := c.cs.VirtualMachine.ListVirtualMachines(p)
	if err != nil {
		return model.VirtualMachine{}, fmt.Errorf("list virtual machine %s: %w", instanceName, err)
	}
	if resp.Count == 0 || len(resp.VirtualMachines) == 0 {
		return model.VirtualMachine{}, fmt.Errorf("vm %s: %w", instanceName, ErrNotFound)
	}
	vm := toVirtualMachine(resp.VirtualMachines[0])
	vm.ProjectVM = projectVM
	return vm, nil
}

// FindCluster looks a cluster up by name.
func (c *CloudStack) FindCluster(_ context.Context, name string) (model.Cluster, error) {
	p := c.cs.Cluster.NewListClustersParams()
	p.SetName(name)
	resp, err := c.cs.Cluster.ListClusters(p)
	if err != nil {
		return model.Cluster{}, fmt.Errorf("list cluster %s: %w", name, err)
	}
	for _, cluster := range resp.Clusters {
		if cluster.Name == name {
			return toCluster(cluster), nil
		}
	}
	return model.Cluster{}, fmt.Errorf("cluster %s: %w", name, ErrNotFound)
}

// ListClusterHosts returns the hypervisor hosts of a cluster.
func (c *CloudStack) ListClusterHosts(_ context.Context, clusterID string) ([]model.Host, error) {
	p := c.cs.Host.NewListHostsParams()
	p.SetClusterid(clusterID)
	p.SetType(routingHost)
	resp, err := c.cs.Host.ListHosts(p)
	if err != nil {
		return nil, fmt.Errorf("list hosts of cluster %s: %w", clusterID, err)
	}
	hosts := make([]model.Host, 0, len(resp.Hosts))
	for _, host := range resp.Hosts {
		hosts = append(hosts, toHost(host))
	}
	return hosts, nil
}

// FindHostByName looks a hypervisor host up by name.
func (c *CloudStack) FindHostByName(_ context.Context, name string) (model.Host, error) {
	p := c.cs.Host.NewListHostsParams()
	p.SetName(name)
	p.SetType(routingHost)
	resp, err := c.cs.Host.ListHosts(p)
	if err != nil {
		return model.Host{}, fmt.Errorf("list host %s: %w", name, err)
	}
	for _, host := range resp.Hosts {
		if host.Name == name {
			return toHost(host), nil
		}
	}
	return model.Host{}, fmt.Errorf("host %s: %w", name, ErrNotFound)
}

// FindStoragePool looks a storage pool up by id.
func (c *CloudStack) FindStoragePool(_ context.Context, id string) (model.StoragePool, error) {
	p := c.cs.Pool.NewListStoragePoolsParams()
	p.SetId(id)
	resp, err := c.cs.Pool.ListStoragePools(p)
	if err != nil {
		return model.StoragePool{}, fmt.Errorf("list storage pool %s: %w", id, err)
	}
	if len(resp.StoragePools) == 0 {
		return model.StoragePool{}, fmt.Errorf("storage pool %s: %w", id, ErrNotFound)
	}
	return toStoragePool(resp.StoragePools[0]), nil
}

// SelectStoragePool picks the migration target pool of a cluster.
func (c *CloudStack) SelectStoragePool(_ context.Context, clusterID, name string) (model.StoragePool, error) {
	p := c.cs.Pool.NewListStoragePoolsParams()
	p.SetClusterid(clusterID)
	if name != "" {
		p.SetName(name)
	}
	resp, err := c.cs.Pool.ListStoragePools(p)
	if err != nil {
		return model.StoragePool{}, fmt.Errorf("list storage pools of cluster %s: %w", clusterID, err)
	}
	for _, pool := range resp.StoragePools {
		if name == "" || pool.Name == name {
			return toStoragePool(pool), nil
		}
	}
	if name == "" {
		return model.StoragePool{}, fmt.Errorf("storage pools of cluster %s: %w", clusterID, ErrNotFound)
	}
	return model.StoragePool{}, fmt.Errorf("storage pool %s in cluster %s: %w", name, clusterID, ErrNotFound)
}

// FindTemplate looks a template up by name across all zones.
func (c *CloudStack) FindTemplate(_ context.Context, name string) (model.Template, error) {
	id, count, err := c.cs.Template.GetTemplateID(name, "all", "")
	if count == 0 {
		return model.Template{}, fmt.Errorf("template %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.Template{}, fmt.Errorf("look up template %s: %w", name, err)
	}
	return model.Template{ID: id, Name: name}, nil
}

// GetServiceOffering reads the offering's tags from the database.
func (c *CloudStack) GetServiceOffering(ctx context.Context, id string) (model.ServiceOffering, error) {
	return c.db.ServiceOffering(ctx, id)
}

// ListVolumes returns the VM's volumes in database order.
func (c *CloudStack) ListVolumes(ctx context.Context, instanceName string) ([]model.Volume, error) {
	return c.db.ListVolumes(ctx, instanceName)
}

// VolumeAttachmentState re-reads the state of the VM a volume is attached to.
func (c *CloudStack) VolumeAttachmentState(ctx context.Context, volumeID string) (model.PowerState, error) {
	return c.db.VolumeAttachmentState(ctx, volumeID)
}

// StopVirtualMachine stops the VM and waits for the async job.
func (c *CloudStack) StopVirtualMachine(_ context.Context, id string) (string, error) {
	p := c.cs.VirtualMachine.NewStopVirtualMachineParams(id)
	resp, err := c.cs.VirtualMachine.StopVirtualMachine(p)
	if err != nil {
		return "", fmt.Errorf("stop virtual machine %s: %w", id, err)
	}
	return resp.State, nil
}

// StartVirtualMachine starts the VM and waits for the async job.
func (c *CloudStack) StartVirtualMachine(_ context.Context, id string) (string, error) {
	p := c.cs.VirtualMachine.NewStartVirtualMachineParams(id)
	resp, err := c.cs.VirtualMachine.StartVirtualMachine(p)
	if err != nil {
		return "", fmt.Errorf("start virtual machine %s: %w", id, err)
	}
	return resp.State, nil
}

// CommitMigration records the migration in the database.
func (c *CloudStack) CommitMigration(ctx context.Context, commit model.Commit) error {
	return c.db.CommitMigration(ctx, commit)
}

func toVirtualMachine(vm *cloudstack.VirtualMachine) model.VirtualMachine {
	return model.VirtualMachine{
		ID:                vm.Id,
		Name:              vm.Name,
		InstanceName:      vm.Instancename,
		State:             model.ParsePowerState(vm.State),
		RawState:          vm.State,
		Hypervisor:        vm.Hypervisor,
		HostName:          vm.Hostname,
		DomainID:          vm.Domainid,
		ServiceOfferingID: vm.Serviceofferingid,
	}
}

func toCluster(cluster *cloudstack.Cluster) model.Cluster {
	return model.Cluster{ID: cluster.Id, Name: cluster.Name, Hypervisor: cluster.Hypervisortype}
}

func toHost(host *cloudstack.Host) model.Host {
	return model.Host{ID: host.Id, Name: host.Name, IPAddress: host.Ipaddress, ClusterID: host.Clusterid}
}

func toStoragePool(pool *cloudstack.StoragePool) model.StoragePool {
	return model.StoragePool{
		ID:        pool.Id,
		Name:      pool.Name,
		Tags:      model.ParseTags(pool.Tags),
		ClusterID: pool.Clusterid,
	}
}
