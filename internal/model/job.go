package model

import (
	"time"

	"github.com/google/uuid"
)

// MigrationJob is the unit of work for one VM. It lives for a single invocation and is never persisted.
type MigrationJob struct {
	ID                  string
	VM                  VirtualMachine
	Volumes             []Volume
	SourceHost          Host
	TargetHost          Host
	TargetCluster       Cluster
	TargetPool          StoragePool
	TargetTemplate      Template
	DryRun              bool
	Force               bool
	SkipDriverInjection bool
	Threads             int
	HelperScripts       []HelperScript
	StartedAt           time.Time

	// CurrentVolume is the index of the volume being processed, -1 before the transfer phase.
	CurrentVolume int
	progress      map[string]string
	order         []string
}

// NewMigrationJob creates a job with a fresh identifier.
func NewMigrationJob() *MigrationJob {
	return &MigrationJob{
		ID:            uuid.New().String(),
		StartedAt:     time.Now(),
		CurrentVolume: -1,
		progress:      make(map[string]string),
	}
}

// RecordProgress stores the last step a volume reached.
func (j *MigrationJob) RecordProgress(volumeID, step string) {
	if j.progress == nil {
		j.progress = make(map[string]string)
	}
	if _, ok := j.progress[volumeID]; !ok {
		j.order = append(j.order, volumeID)
	}
	j.progress[volumeID] = step
}

// Progress returns the last step recorded for a volume.
func (j *MigrationJob) Progress(volumeID string) (string, bool) {
	step, ok := j.progress[volumeID]
	return step, ok
}

// ProgressOrder returns the volume IDs in the order progress was first recorded.
func (j *MigrationJob) ProgressOrder() []string {
	return append([]string(nil), j.order...)
}
