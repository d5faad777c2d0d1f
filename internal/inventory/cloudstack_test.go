package inventory

import (
	"testing"

	"github.com/apache/cloudstack-go/v2/cloudstack"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestToVirtualMachine(t *testing.T) {
	vm := toVirtualMachine(&cloudstack.VirtualMachine{
		Id:                "vm-uuid",
		Name:              "web",
		Instancename:      "i-2-100-VM",
		State:             "Migrating",
		Hypervisor:        "XenServer",
		Hostname:          "xen01",
		Domainid:          "domain-1",
		Serviceofferingid: "offering-1",
	})

	assert.Equal(t, model.VirtualMachine{
		ID:                "vm-uuid",
		Name:              "web",
		InstanceName:      "i-2-100-VM",
		State:             model.PowerStateOther,
		RawState:          "Migrating",
		Hypervisor:        "XenServer",
		HostName:          "xen01",
		DomainID:          "domain-1",
		ServiceOfferingID: "offering-1",
	}, vm)
}

func TestToStoragePool(t *testing.T) {
	pool := toStoragePool(&cloudstack.StoragePool{Id: "pool-kvm", Name: "kvm-primary", Tags: "ssd, fast,ssd", Clusterid: "cluster-2"})

	assert.Equal(t, []string{"fast", "ssd"}, pool.Tags)
	assert.Equal(t, "cluster-2", pool.ClusterID)
	assert.True(t, pool.HasTags("ssd,fast"))
}

func TestToHostAndCluster(t *testing.T) {
	host := toHost(&cloudstack.Host{Id: "host-1", Name: "kvm01", Ipaddress: "10.0.1.10", Clusterid: "cluster-2"})
	assert.Equal(t, model.Host{ID: "host-1", Name: "kvm01", IPAddress: "10.0.1.10", ClusterID: "cluster-2"}, host)

	cluster := toCluster(&cloudstack.Cluster{Id: "cluster-2", Name: "kvm-cluster", Hypervisortype: "KVM"})
	assert.Equal(t, model.Cluster{ID: "cluster-2", Name: "kvm-cluster", Hypervisor: "KVM"}, cluster)
}
