package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/errs"
	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/inventory"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/codebypatrickleung/hvshift/internal/notify"
	"github.com/codebypatrickleung/hvshift/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	xenAddress = "10.0.0.1"
	kvmAddress = "10.0.1.10"
	kvmMount   = "/mnt/kvm-storage"
)

// fakeExecutor answers remote commands the way XenServer and KVM hosts would and records them.
type fakeExecutor struct {
	trace    *[]string
	commands []string
	hosts    []string
	failOn   string
}

func (f *fakeExecutor) Run(_ context.Context, host, command string) (string, error) {
	f.commands = append(f.commands, command)
	f.hosts = append(f.hosts, host)
	*f.trace = append(*f.trace, label(command))

	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return "qemu-img: Could not open image", errors.New("exit status 1")
	}
	switch {
	case strings.HasPrefix(command, "mount | grep"):
		return kvmMount + "\n", nil
	case strings.Contains(command, "xe vdi-export"):
		return command[strings.LastIndex(command, "ls ")+3:] + "\n", nil
	}
	return "", nil
}

func label(command string) string {
	switch {
	case strings.HasPrefix(command, "mount | grep"):
		return "resolve-mount"
	case strings.HasPrefix(command, "mkdir -p /opt/hvshift/export"):
		return "prepare-source"
	case strings.HasPrefix(command, "mkdir -p"):
		return "prepare-target"
	case strings.Contains(command, "xe vdi-export"):
		return "extract"
	case strings.Contains(command, "wget"):
		return "download"
	case strings.Contains(command, "qemu-img convert"):
		return "convert"
	case strings.Contains(command, "qemu-img resize"):
		return "resize"
	case strings.Contains(command, "virt-v2v"):
		return "inject"
	case strings.Contains(command, "&& mv "):
		return "place"
	}
	return command
}

type recordingNotifier struct {
	kinds []notify.EventKind
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.kinds = append(r.kinds, e.Kind)
	return r.err
}

type fixture struct {
	t        *testing.T
	cfg      *config.Config
	gw       *inventory.MockGateway
	exec     *fakeExecutor
	pusher   *remote.MockPusher
	notifier *recordingNotifier
	scripts  []model.HelperScript
	trace    []string

	vm          model.VirtualMachine
	offering    model.ServiceOffering
	targetPool  model.StoragePool
	volumes     []model.Volume
	attachment  map[string]model.PowerState
	sourcePools map[string]model.StoragePool

	handler *MigrationHandler
}

func rootVolume(id, pool string) model.Volume {
	return model.Volume{ID: id, Name: "ROOT-" + id, Path: id, Kind: model.VolumeKindRoot, StoragePoolID: pool, StoragePoolName: pool}
}

func dataVolume(id, pool string) model.Volume {
	return model.Volume{ID: id, Name: "DATA-" + id, Path: id, Kind: model.VolumeKindData, StoragePoolID: pool, StoragePoolName: pool}
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t: t,
		cfg: &config.Config{
			InstanceName:    "i-2-3-VM",
			ToCluster:       "kvm-cluster",
			NewBaseTemplate: "centos-kvm",
			SourcePlatform:  model.PlatformXenServer,
			TargetPlatform:  model.PlatformKVM,
			MountPattern:    "storage",
			Threads:         5,
		},
		gw:       new(inventory.MockGateway),
		pusher:   new(remote.MockPusher),
		notifier: &recordingNotifier{},
		vm: model.VirtualMachine{
			ID:                "vm-3",
			Name:              "web",
			InstanceName:      "i-2-3-VM",
			State:             model.PowerStateRunning,
			RawState:          "Running",
			Hypervisor:        "XenServer",
			HostName:          "xen01",
			ServiceOfferingID: "so-1",
		},
		offering:    model.ServiceOffering{ID: "so-1", Name: "medium", StorageTags: "ssd"},
		targetPool:  model.StoragePool{ID: "P2", Name: "kvm-primary", Tags: []string{"ssd"}, ClusterID: "c-2"},
		volumes:     []model.Volume{rootVolume("vol-a", "P1"), rootVolume("vol-b", "P1")},
		attachment:  map[string]model.PowerState{},
		sourcePools: map[string]model.StoragePool{"P1": {ID: "P1", Name: "xen-primary", ClusterID: "c-1"}},
	}
	f.exec = &fakeExecutor{trace: &f.trace}
	return f
}

func (f *fixture) record(name string) func(mock.Arguments) {
	return func(mock.Arguments) { f.trace = append(f.trace, name) }
}

func (f *fixture) expectStop(state string, err error) {
	f.gw.On("StopVirtualMachine", mock.Anything, "vm-3").Return(state, err).Run(f.record("stop"))
}

func (f *fixture) expectStart(state string, err error) {
	f.gw.On("StartVirtualMachine", mock.Anything, "vm-3").Return(state, err).Run(f.record("start"))
}

func (f *fixture) expectCommit(err error) {
	f.gw.On("CommitMigration", mock.Anything, mock.Anything).Return(err).Run(f.record("commit"))
}

func (f *fixture) expectRunningLifecycle() {
	f.expectStop("Stopped", nil)
	f.expectCommit(nil)
	f.expectStart("Running", nil)
}

func (f *fixture) run() error {
	f.t.Helper()
	ctx := mock.Anything
	f.gw.On("FindVirtualMachine", ctx, "i-2-3-VM", false).Return(f.vm, nil).Maybe()
	f.gw.On("FindCluster", ctx, "kvm-cluster").Return(model.Cluster{ID: "c-2", Name: "kvm-cluster", Hypervisor: "KVM"}, nil).Maybe()
	f.gw.On("ListClusterHosts", ctx, "c-2").Return([]model.Host{{ID: "h-kvm", Name: "kvm01", IPAddress: kvmAddress, ClusterID: "c-2"}}, nil).Maybe()
	f.gw.On("ListClusterHosts", ctx, "c-1").Return([]model.Host{{ID: "h-xen", Name: "xen01", IPAddress: xenAddress, ClusterID: "c-1"}}, nil).Maybe()
	f.gw.On("FindHostByName", ctx, "xen01").Return(model.Host{ID: "h-xen", Name: "xen01", IPAddress: xenAddress, ClusterID: "c-1"}, nil).Maybe()
	f.gw.On("FindTemplate", ctx, "centos-kvm").Return(model.Template{ID: "tmpl-kvm", Name: "centos-kvm"}, nil).Maybe()
	f.gw.On("SelectStoragePool", ctx, "c-2", f.cfg.StoragePool).Return(f.targetPool, nil).Maybe()
	f.gw.On("GetServiceOffering", ctx, "so-1").Return(f.offering, nil).Maybe()
	f.gw.On("ListVolumes", ctx, "i-2-3-VM").Return(f.volumes, nil).Maybe()
	for id, pool := range f.sourcePools {
		f.gw.On("FindStoragePool", ctx, id).Return(pool, nil).Maybe()
	}
	for _, vol := range f.volumes {
		state, ok := f.attachment[vol.ID]
		if !ok {
			state = model.PowerStateStopped
		}
		f.gw.On("VolumeAttachmentState", ctx, vol.ID).Return(state, nil).Maybe()
	}

	log := logger.Discard()
	f.handler = NewMigrationHandlerWithDependencies(model.PlatformXenServer, model.PlatformKVM, Dependencies{
		Gateway:  f.gw,
		Source:   hypervisor.NewXenServerSource(f.exec, log),
		Target:   hypervisor.NewKVMTarget(f.exec, f.pusher, f.cfg.MountPattern, log),
		Notifier: f.notifier,
		Scripts:  f.scripts,
	})
	require.NoError(f.t, f.handler.Initialize(f.cfg, log))
	return f.handler.Execute(context.Background())
}

func (f *fixture) progress(volumeID string) string {
	step, _ := f.handler.Job().Progress(volumeID)
	return step
}

func TestMigrateRunningVM(t *testing.T) {
	f := newFixture(t)
	f.expectRunningLifecycle()

	require.NoError(t, f.run())

	assert.Equal(t, []string{
		"stop",
		"prepare-source", "resolve-mount", "prepare-target",
		"extract", "download", "convert", "resize", "inject", "place",
		"extract", "download", "convert", "resize", "inject", "place",
		"commit",
		"start",
	}, f.trace)

	f.gw.AssertCalled(t, "CommitMigration", mock.Anything, model.Commit{
		InstanceName:    "i-2-3-VM",
		TemplateID:      "tmpl-kvm",
		StoragePoolName: "kvm-primary",
		Hypervisor:      "KVM",
	})
	f.gw.AssertNumberOfCalls(t, "CommitMigration", 1)

	for i, command := range f.exec.commands {
		if label(command) == "extract" || label(command) == "prepare-source" {
			assert.Equal(t, xenAddress, f.exec.hosts[i], command)
		} else {
			assert.Equal(t, kvmAddress, f.exec.hosts[i], command)
		}
	}
	assert.Contains(t, f.exec.commands, "cd /mnt/kvm-storage/migration/ && wget -q -O vol-a.vhd http://10.0.0.1:50000/vol-a.vhd")
	assert.Contains(t, f.exec.commands, "cd /mnt/kvm-storage/migration/ && mv vol-b-sda /mnt/kvm-storage/vol-b")

	assert.Equal(t, StateDone, f.handler.State())
	assert.Equal(t, "Placed", f.progress("vol-a"))
	assert.Equal(t, "Placed", f.progress("vol-b"))
	assert.Equal(t, model.PowerStateRunning, f.handler.Job().VM.State)
	assert.Equal(t, []notify.EventKind{notify.JobStarted, notify.VMStopped, notify.VMStarted, notify.MigrationCompleted}, f.notifier.kinds)
}

func TestMigratePoolMismatchAbortsBeforeStop(t *testing.T) {
	f := newFixture(t)
	f.volumes = []model.Volume{rootVolume("vol-a", "P1"), rootVolume("vol-b", "P2")}
	f.expectRunningLifecycle()

	err := f.run()
	require.Error(t, err)

	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "all volumes must share one storage pool")
	assert.Equal(t, errs.NothingChanged, errs.Guidance(err))

	f.gw.AssertNotCalled(t, "StopVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "CommitMigration", mock.Anything, mock.Anything)
	assert.Empty(t, f.exec.commands)
	assert.Equal(t, StateAborted, f.handler.State())
	assert.Equal(t, []notify.EventKind{notify.JobStarted, notify.MigrationAborted}, f.notifier.kinds)
}

func TestMigrateStoppedVMIsNeverStoppedOrStarted(t *testing.T) {
	f := newFixture(t)
	f.vm.State, f.vm.RawState, f.vm.HostName = model.PowerStateStopped, "Stopped", ""
	f.expectCommit(nil)

	require.NoError(t, f.run())

	f.gw.AssertNotCalled(t, "StopVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "StartVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertCalled(t, "FindStoragePool", mock.Anything, "P1")
	assert.Equal(t, "prepare-source", f.trace[0])
	assert.Equal(t, xenAddress, f.exec.hosts[0])
	assert.Equal(t, "commit", f.trace[len(f.trace)-1])
	assert.Equal(t, StateDone, f.handler.State())
}

func TestMigrateSkipsVolumesOnTargetPool(t *testing.T) {
	f := newFixture(t)
	f.volumes = []model.Volume{rootVolume("vol-a", "P2"), dataVolume("vol-d", "P2")}
	f.expectRunningLifecycle()

	require.NoError(t, f.run())

	assert.Empty(t, f.exec.commands)
	assert.Equal(t, []string{"stop", "commit", "start"}, f.trace)
	assert.Equal(t, progressSkipped, f.progress("vol-a"))
	assert.Equal(t, progressSkipped, f.progress("vol-d"))
	f.gw.AssertCalled(t, "VolumeAttachmentState", mock.Anything, "vol-a")
	f.gw.AssertCalled(t, "VolumeAttachmentState", mock.Anything, "vol-d")
}

func TestMigrateDataVolumeIsNeverFixedOrInjected(t *testing.T) {
	for _, skip := range []bool{false, true} {
		f := newFixture(t)
		f.cfg.SkipDriverInjection = skip
		f.volumes = []model.Volume{dataVolume("vol-d", "P1")}
		f.expectRunningLifecycle()

		require.NoError(t, f.run())

		assert.Equal(t, []string{
			"stop", "prepare-source", "resolve-mount", "prepare-target",
			"extract", "download", "convert", "place",
			"commit", "start",
		}, f.trace, "skip=%v", skip)
		assert.Contains(t, f.exec.commands, "cd /mnt/kvm-storage/migration/ && mv vol-d /mnt/kvm-storage/vol-d")
	}
}

func TestMigrateSkipDriverInjectionStillFixesPartition(t *testing.T) {
	f := newFixture(t)
	f.cfg.SkipDriverInjection = true
	f.volumes = []model.Volume{rootVolume("vol-a", "P1")}
	f.expectRunningLifecycle()

	require.NoError(t, f.run())

	assert.Equal(t, []string{
		"stop", "prepare-source", "resolve-mount", "prepare-target",
		"extract", "download", "convert", "resize", "place",
		"commit", "start",
	}, f.trace)
	assert.Contains(t, f.exec.commands, "cd /mnt/kvm-storage/migration/ && qemu-img resize vol-a +512000")
	assert.Contains(t, f.exec.commands, "cd /mnt/kvm-storage/migration/ && mv vol-a /mnt/kvm-storage/vol-a")
}

func TestMigrateStorageTagMismatch(t *testing.T) {
	t.Run("Rejected without force", func(t *testing.T) {
		f := newFixture(t)
		f.offering.StorageTags = "hdd"
		f.expectRunningLifecycle()

		err := f.run()
		var validationErr *errs.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, err.Error(), "do not match the service offering 'hdd'")
		f.gw.AssertNotCalled(t, "StopVirtualMachine", mock.Anything, mock.Anything)
		assert.Empty(t, f.exec.commands)
	})

	t.Run("Warning with force", func(t *testing.T) {
		f := newFixture(t)
		f.offering.StorageTags = "hdd"
		f.cfg.Force = true
		f.expectRunningLifecycle()

		require.NoError(t, f.run())
		f.gw.AssertNumberOfCalls(t, "CommitMigration", 1)
	})

	t.Run("Empty offering tags", func(t *testing.T) {
		f := newFixture(t)
		f.offering.StorageTags = ""
		f.expectRunningLifecycle()

		require.NoError(t, f.run())
	})
}

func TestMigrateRemoteFailureOnSecondVolume(t *testing.T) {
	f := newFixture(t)
	f.volumes = []model.Volume{rootVolume("vol-a", "P1"), rootVolume("vol-b", "P1"), rootVolume("vol-c", "P1")}
	f.exec.failOn = "qemu-img convert vol-b.vhd"
	f.expectRunningLifecycle()

	err := f.run()
	require.Error(t, err)

	var remoteErr *errs.RemoteCommandError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "vol-b", remoteErr.VolumeID)
	assert.Equal(t, "ConvertedToTargetFormat", remoteErr.Step)
	assert.Equal(t, "kvm01", remoteErr.Host)
	assert.Equal(t, errs.NothingChanged, errs.Guidance(err))

	f.gw.AssertNotCalled(t, "CommitMigration", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "StartVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "VolumeAttachmentState", mock.Anything, "vol-c")
	assert.Equal(t, "Placed", f.progress("vol-a"))
	assert.Equal(t, "Downloaded", f.progress("vol-b"))
	assert.Equal(t, "", f.progress("vol-c"))
	assert.Equal(t, 1, f.handler.Job().CurrentVolume)
	assert.Equal(t, StateAborted, f.handler.State())
}

func TestMigrateStopFailures(t *testing.T) {
	t.Run("Stop reports another state", func(t *testing.T) {
		f := newFixture(t)
		f.expectStop("Stopping", nil)

		err := f.run()
		var mismatch *errs.StateMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "Stopping", mismatch.Actual)
		assert.Empty(t, f.exec.commands)
		assert.Contains(t, f.notifier.kinds, notify.StopFailed)
	})

	t.Run("Stop call fails", func(t *testing.T) {
		f := newFixture(t)
		f.expectStop("", errors.New("async job failed"))

		err := f.run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stop vm web")
		assert.Equal(t, errs.NothingChanged, errs.Guidance(err))
		assert.Empty(t, f.exec.commands)
		f.gw.AssertNotCalled(t, "CommitMigration", mock.Anything, mock.Anything)
	})
}

func TestMigrateVolumeNotStopped(t *testing.T) {
	f := newFixture(t)
	f.attachment["vol-b"] = model.PowerStateRunning
	f.expectRunningLifecycle()

	err := f.run()
	var mismatch *errs.StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "volume vol-b", mismatch.Subject)

	assert.Equal(t, "Placed", f.progress("vol-a"))
	for _, command := range f.exec.commands {
		assert.NotContains(t, command, "vol-b")
	}
	f.gw.AssertNotCalled(t, "CommitMigration", mock.Anything, mock.Anything)
}

func TestMigrateCommitFailure(t *testing.T) {
	f := newFixture(t)
	f.expectStop("Stopped", nil)
	f.expectCommit(errors.New("deadlock found"))
	f.expectStart("Running", nil)

	err := f.run()
	var commitErr *errs.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, "i-2-3-VM", commitErr.InstanceName)
	assert.Equal(t, errs.InvestigateCommit, errs.Guidance(err))
	f.gw.AssertNotCalled(t, "StartVirtualMachine", mock.Anything, mock.Anything)
	assert.Equal(t, StateAborted, f.handler.State())
}

func TestMigrateStartFailureIsWarning(t *testing.T) {
	t.Run("Wrong state", func(t *testing.T) {
		f := newFixture(t)
		f.expectStop("Stopped", nil)
		f.expectCommit(nil)
		f.expectStart("Stopped", nil)

		require.NoError(t, f.run())
		assert.Equal(t, StateDone, f.handler.State())
		assert.Contains(t, f.notifier.kinds, notify.StartFailed)
	})

	t.Run("Call fails", func(t *testing.T) {
		f := newFixture(t)
		f.expectStop("Stopped", nil)
		f.expectCommit(nil)
		f.expectStart("", errors.New("insufficient capacity"))

		require.NoError(t, f.run())
		assert.Contains(t, f.notifier.kinds, notify.StartFailed)
	})
}

func TestMigrateDryRun(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true
	f.attachment["vol-a"] = model.PowerStateRunning
	f.attachment["vol-b"] = model.PowerStateRunning

	require.NoError(t, f.run())

	assert.Empty(t, f.exec.commands)
	assert.Empty(t, f.trace)
	f.gw.AssertNotCalled(t, "StopVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "StartVirtualMachine", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "CommitMigration", mock.Anything, mock.Anything)
	f.gw.AssertCalled(t, "GetServiceOffering", mock.Anything, "so-1")
	assert.Equal(t, StateDone, f.handler.State())
}

func TestMigrateDryRunStillValidates(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true
	f.offering.StorageTags = "hdd"

	err := f.run()
	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestMigrateValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		errMsg string
	}{
		{
			name:   "Already on target platform",
			setup:  func(f *fixture) { f.vm.Hypervisor = "KVM" },
			errMsg: "already runs on KVM",
		},
		{
			name:   "Unsupported power state",
			setup:  func(f *fixture) { f.vm.State, f.vm.RawState = model.PowerStateOther, "Starting" },
			errMsg: "needs to be Running or Stopped",
		},
		{
			name:   "No volumes",
			setup:  func(f *fixture) { f.volumes = nil },
			errMsg: "has no volumes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			f.expectRunningLifecycle()

			err := f.run()
			var validationErr *errs.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.errMsg)
			f.gw.AssertNotCalled(t, "StopVirtualMachine", mock.Anything, mock.Anything)
			assert.Empty(t, f.exec.commands)
		})
	}
}

func TestMigrateUnknownCluster(t *testing.T) {
	f := newFixture(t)
	f.cfg.ToCluster = "missing"
	f.gw.On("FindCluster", mock.Anything, "missing").Return(model.Cluster{}, inventory.ErrNotFound)

	err := f.run()
	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestMigrateInvalidStateCarriesMismatch(t *testing.T) {
	f := newFixture(t)
	f.vm.State, f.vm.RawState = model.PowerStateOther, "Migrating"

	err := f.run()
	var mismatch *errs.StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Migrating", mismatch.Actual)
}

func TestMigrateHelperScripts(t *testing.T) {
	scripts := []model.HelperScript{{Name: "download_volume.sh", Content: []byte("#!/bin/sh\n"), Mode: 0o755}}

	t.Run("Pushed to the migration folder", func(t *testing.T) {
		f := newFixture(t)
		f.scripts = scripts
		f.pusher.On("Push", mock.Anything, kvmAddress, kvmMount+"/migration/", scripts).Return(nil)
		f.expectRunningLifecycle()

		require.NoError(t, f.run())
		f.pusher.AssertExpectations(t)
	})

	t.Run("Push failure is a warning", func(t *testing.T) {
		f := newFixture(t)
		f.scripts = scripts
		f.pusher.On("Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("permission denied"))
		f.expectRunningLifecycle()

		require.NoError(t, f.run())
		f.gw.AssertNumberOfCalls(t, "CommitMigration", 1)
	})

	t.Run("Nothing pushed without scripts", func(t *testing.T) {
		f := newFixture(t)
		f.expectRunningLifecycle()

		require.NoError(t, f.run())
		f.pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMigrateNotificationFailureNeverAborts(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = &errs.NotificationError{Event: "job_started", Err: errors.New("webhook down")}
	f.expectRunningLifecycle()

	require.NoError(t, f.run())
	assert.Equal(t, StateDone, f.handler.State())
}

func TestMigrationHandlerName(t *testing.T) {
	h := NewMigrationHandler(model.PlatformXenServer, model.PlatformKVM, Platforms())
	assert.Equal(t, "XenServer to KVM Migration", h.Name())
	assert.Equal(t, "xenserver", h.SourcePlatform())
	assert.Equal(t, "kvm", h.TargetPlatform())
	assert.NoError(t, h.Close())
}

func TestHelperScriptsAlwaysIncludeDownloadHelper(t *testing.T) {
	bundle, err := helperScripts(&config.Config{})
	require.NoError(t, err)
	require.Len(t, bundle, 1)
	assert.Equal(t, "download_volume.sh", bundle[0].Name)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cleanup.sh"), []byte("#!/bin/sh\n"), 0o644))
	bundle, err = helperScripts(&config.Config{HelperScripts: dir})
	require.NoError(t, err)
	var names []string
	for _, script := range bundle {
		names = append(names, script.Name)
	}
	assert.Equal(t, []string{"download_volume.sh", "cleanup.sh"}, names)

	_, err = helperScripts(&config.Config{HelperScripts: filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "failed to load helper scripts")
}
