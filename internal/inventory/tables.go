package inventory

import "time"

// The subset of the CloudStack schema hvshift reads and writes.

type vmInstance struct {
	ID             int64      `gorm:"primaryKey;column:id"`
	UUID           string     `gorm:"column:uuid"`
	Name           string     `gorm:"column:name"`
	InstanceName   string     `gorm:"column:instance_name"`
	State          string     `gorm:"column:state"`
	HypervisorType string     `gorm:"column:hypervisor_type"`
	VMTemplateID   int64      `gorm:"column:vm_template_id"`
	LastHostID     *int64     `gorm:"column:last_host_id"`
	Removed        *time.Time `gorm:"column:removed"`
}

func (vmInstance) TableName() string { return "vm_instance" }

type volumeRecord struct {
	ID         int64      `gorm:"primaryKey;column:id"`
	UUID       string     `gorm:"column:uuid"`
	Name       string     `gorm:"column:name"`
	Path       string     `gorm:"column:path"`
	VolumeType string     `gorm:"column:volume_type"`
	InstanceID *int64     `gorm:"column:instance_id"`
	PoolID     *int64     `gorm:"column:pool_id"`
	Format     string     `gorm:"column:format"`
	Removed    *time.Time `gorm:"column:removed"`
}

func (volumeRecord) TableName() string { return "volumes" }

type storagePool struct {
	ID        int64      `gorm:"primaryKey;column:id"`
	UUID      string     `gorm:"column:uuid"`
	Name      string     `gorm:"column:name"`
	ClusterID int64      `gorm:"column:cluster_id"`
	Removed   *time.Time `gorm:"column:removed"`
}

func (storagePool) TableName() string { return "storage_pool" }

type vmTemplate struct {
	ID      int64      `gorm:"primaryKey;column:id"`
	UUID    string     `gorm:"column:uuid"`
	Name    string     `gorm:"column:name"`
	Removed *time.Time `gorm:"column:removed"`
}

func (vmTemplate) TableName() string { return "vm_template" }

// diskOffering holds the storage tags of a service offering, which shares its id.
type diskOffering struct {
	ID      int64      `gorm:"primaryKey;column:id"`
	UUID    string     `gorm:"column:uuid"`
	Name    string     `gorm:"column:name"`
	Tags    string     `gorm:"column:tags"`
	Removed *time.Time `gorm:"column:removed"`
}

func (diskOffering) TableName() string { return "disk_offering" }

type serviceOffering struct {
	ID      int64  `gorm:"primaryKey;column:id"`
	HostTag string `gorm:"column:host_tag"`
}

func (serviceOffering) TableName() string { return "service_offering" }
