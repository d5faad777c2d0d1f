package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	convertedFormat = "QCOW2"
	notRemoved      = "removed IS NULL"
)

// Database reads volume metadata from and records migrations in the CloudStack database.
type Database struct {
	db *gorm.DB
}

// OpenMySQL connects to the CloudStack MySQL database.
func OpenMySQL(dsn string) (*Database, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cloudstack database: %w", err)
	}
	return NewDatabase(db), nil
}

// NewDatabase wraps an open gorm connection.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// VirtualMachineUUID resolves the uuid of a live VM from its instance name.
func (d *Database) VirtualMachineUUID(ctx context.Context, instanceName string) (string, error) {
	var vm vmInstance
	err := d.db.WithContext(ctx).
		Where("instance_name = ?", instanceName).
		Where(notRemoved).
		First(&vm).Error
	if err != nil {
		return "", notFound(err, "vm %s", instanceName)
	}
	return vm.UUID, nil
}

type offeringRow struct {
	UUID    string `gorm:"column:uuid"`
	Name    string `gorm:"column:name"`
	Tags    string `gorm:"column:tags"`
	HostTag string `gorm:"column:host_tag"`
}

// ServiceOffering reads the storage and host tags of an offering by uuid.
func (d *Database) ServiceOffering(ctx context.Context, uuid string) (model.ServiceOffering, error) {
	var row offeringRow
	err := d.db.WithContext(ctx).
		Table("disk_offering").
		Select("disk_offering.uuid, disk_offering.name, disk_offering.tags, service_offering.host_tag").
		Joins("LEFT JOIN service_offering ON service_offering.id = disk_offering.id").
		Where("disk_offering.uuid = ?", uuid).
		Where("disk_offering.removed IS NULL").
		Take(&row).Error
	if err != nil {
		return model.ServiceOffering{}, notFound(err, "service offering %s", uuid)
	}
	return model.ServiceOffering{
		ID:          row.UUID,
		Name:        row.Name,
		StorageTags: strings.TrimSpace(row.Tags),
		HostTags:    strings.TrimSpace(row.HostTag),
	}, nil
}

type volumeRow struct {
	UUID       string `gorm:"column:uuid"`
	Name       string `gorm:"column:name"`
	Path       string `gorm:"column:path"`
	VolumeType string `gorm:"column:volume_type"`
	PoolUUID   string `gorm:"column:pool_uuid"`
	PoolName   string `gorm:"column:pool_name"`
	VMState    string `gorm:"column:vm_state"`
}

func (d *Database) volumeQuery(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Table("volumes").
		Select("volumes.uuid, volumes.name, volumes.path, volumes.volume_type, " +
			"storage_pool.uuid AS pool_uuid, storage_pool.name AS pool_name, vm_instance.state AS vm_state").
		Joins("JOIN vm_instance ON vm_instance.id = volumes.instance_id").
		Joins("LEFT JOIN storage_pool ON storage_pool.id = volumes.pool_id").
		Where("volumes.removed IS NULL").
		Where("vm_instance.removed IS NULL")
}

// ListVolumes returns the volumes attached to a VM ordered by their database id.
func (d *Database) ListVolumes(ctx context.Context, instanceName string) ([]model.Volume, error) {
	var rows []volumeRow
	err := d.volumeQuery(ctx).
		Where("vm_instance.instance_name = ?", instanceName).
		Order("volumes.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list volumes of %s: %w", instanceName, err)
	}

	volumes := make([]model.Volume, 0, len(rows))
	for _, row := range rows {
		volumes = append(volumes, model.Volume{
			ID:              row.UUID,
			Name:            row.Name,
			Path:            row.Path,
			Kind:            model.ParseVolumeKind(row.VolumeType),
			AttachmentState: model.ParsePowerState(row.VMState),
			StoragePoolID:   row.PoolUUID,
			StoragePoolName: row.PoolName,
		})
	}
	return volumes, nil
}

// VolumeAttachmentState returns the power state of the VM a volume is attached to.
func (d *Database) VolumeAttachmentState(ctx context.Context, volumeUUID string) (model.PowerState, error) {
	var row volumeRow
	err := d.volumeQuery(ctx).
		Where("volumes.uuid = ?", volumeUUID).
		Take(&row).Error
	if err != nil {
		return model.PowerStateOther, notFound(err, "volume %s", volumeUUID)
	}
	return model.ParsePowerState(row.VMState), nil
}

// CommitMigration points the VM at its new template and hypervisor and moves its volumes to the
// target pool, in a single transaction.
func (d *Database) CommitMigration(ctx context.Context, commit model.Commit) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl vmTemplate
		if err := tx.Where("uuid = ?", commit.TemplateID).Where(notRemoved).First(&tmpl).Error; err != nil {
			return notFound(err, "template %s", commit.TemplateID)
		}
		var pool storagePool
		if err := tx.Where("name = ?", commit.StoragePoolName).Where(notRemoved).First(&pool).Error; err != nil {
			return notFound(err, "storage pool %s", commit.StoragePoolName)
		}
		var vm vmInstance
		if err := tx.Where("instance_name = ?", commit.InstanceName).Where(notRemoved).First(&vm).Error; err != nil {
			return notFound(err, "vm %s", commit.InstanceName)
		}

		res := tx.Model(&vmInstance{}).Where("id = ?", vm.ID).Updates(map[string]interface{}{
			"hypervisor_type": commit.Hypervisor,
			"vm_template_id":  tmpl.ID,
			"last_host_id":    nil,
		})
		if res.Error != nil {
			return fmt.Errorf("update vm %s: %w", commit.InstanceName, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("update vm %s: %d rows affected", commit.InstanceName, res.RowsAffected)
		}

		res = tx.Model(&volumeRecord{}).
			Where("instance_id = ?", vm.ID).
			Where(notRemoved).
			Updates(map[string]interface{}{
				"pool_id": pool.ID,
				"format":  convertedFormat,
			})
		if res.Error != nil {
			return fmt.Errorf("update volumes of %s: %w", commit.InstanceName, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update volumes of %s: no volumes found", commit.InstanceName)
		}
		return nil
	})
}
