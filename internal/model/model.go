// Package model defines the inventory entities and the migration job handled by hvshift.
package model

import (
	"os"
	"sort"
	"strings"
)

// Platform names used to select source and target adapters.
const (
	PlatformXenServer = "xenserver"
	PlatformKVM       = "kvm"
	PlatformAzure     = "azure"
	PlatformOCI       = "oci"
)

// PowerState is the coarse power state of a virtual machine.
type PowerState string

const (
	PowerStateRunning PowerState = "Running"
	PowerStateStopped PowerState = "Stopped"
	PowerStateOther   PowerState = "Other"
)

// ParsePowerState maps a CloudStack state string to a PowerState.
func ParsePowerState(state string) PowerState {
	switch strings.TrimSpace(state) {
	case string(PowerStateRunning):
		return PowerStateRunning
	case string(PowerStateStopped):
		return PowerStateStopped
	default:
		return PowerStateOther
	}
}

// VolumeKind distinguishes boot disks from data disks.
type VolumeKind string

const (
	VolumeKindRoot VolumeKind = "Root"
	VolumeKindData VolumeKind = "Data"
)

// ParseVolumeKind maps a CloudStack volume type (ROOT, DATADISK) to a VolumeKind.
func ParseVolumeKind(volumeType string) VolumeKind {
	if strings.EqualFold(strings.TrimSpace(volumeType), "ROOT") {
		return VolumeKindRoot
	}
	return VolumeKindData
}

// VirtualMachine is a CloudStack instance as seen by the inventory.
type VirtualMachine struct {
	ID                string
	Name              string
	InstanceName      string
	State             PowerState
	RawState          string
	Hypervisor        string
	HostName          string
	DomainID          string
	ServiceOfferingID string
	ProjectVM         bool
}

// Volume is a disk attached to a virtual machine.
type Volume struct {
	ID              string
	Name            string
	Path            string
	Kind            VolumeKind
	AttachmentState PowerState
	StoragePoolID   string
	StoragePoolName string
}

// StoragePool is a primary storage pool of a cluster.
type StoragePool struct {
	ID        string
	Name      string
	Tags      []string
	ClusterID string
}

// ParseTags splits a comma separated CloudStack tag string into a sorted, de-duplicated list.
func ParseTags(tags string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	sort.Strings(result)
	return result
}

// TagString returns the pool tags in CloudStack's comma separated form.
func (p StoragePool) TagString() string {
	return strings.Join(p.Tags, ",")
}

// HasTags reports whether the pool carries exactly the given comma separated tag set.
func (p StoragePool) HasTags(tags string) bool {
	want := ParseTags(tags)
	have := ParseTags(p.TagString())
	if len(want) != len(have) {
		return false
	}
	for i := range want {
		if want[i] != have[i] {
			return false
		}
	}
	return true
}

// Host is a hypervisor host reachable over the network.
type Host struct {
	ID        string
	Name      string
	IPAddress string
	ClusterID string
}

// Address returns the address used to reach the host.
func (h Host) Address() string {
	if h.IPAddress != "" {
		return h.IPAddress
	}
	return h.Name
}

// Cluster is a group of hosts running the same hypervisor.
type Cluster struct {
	ID         string
	Name       string
	Hypervisor string
}

// Template is a CloudStack template the migrated VM is linked to.
type Template struct {
	ID   string
	Name string
}

// ServiceOffering holds the compatibility tags of a VM's offering.
type ServiceOffering struct {
	ID          string
	Name        string
	StorageTags string
	HostTags    string
}

// Commit is the inventory update recorded after all volumes were transferred.
type Commit struct {
	InstanceName    string
	TemplateID      string
	StoragePoolName string
	Hypervisor      string
}

// HelperScript is a file pushed to the target host's migration directory.
type HelperScript struct {
	Name    string
	Stage   string
	Content []byte
	Mode    os.FileMode
}
