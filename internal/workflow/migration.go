package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/errs"
	"github.com/codebypatrickleung/hvshift/internal/hypervisor"
	"github.com/codebypatrickleung/hvshift/internal/inventory"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/codebypatrickleung/hvshift/internal/notify"
	"github.com/codebypatrickleung/hvshift/internal/pipeline"
	"github.com/codebypatrickleung/hvshift/internal/remote"
	"github.com/codebypatrickleung/hvshift/internal/scripts"
)

// State is a phase of a migration job.
type State string

const (
	StateValidating          State = "Validating"
	StateAwaitingStop        State = "AwaitingStop"
	StatePreparing           State = "Preparing"
	StateTransferringVolumes State = "TransferringVolumes"
	StateCommitting          State = "Committing"
	StateRestarting          State = "Restarting"
	StateDone                State = "Done"
	StateAborted             State = "Aborted"
)

// progressSkipped is recorded for volumes that already live on the target pool.
const progressSkipped = "AlreadyOnTargetPool"

// Dependencies are the collaborators of a migration.
type Dependencies struct {
	Gateway  inventory.Gateway
	Source   hypervisor.SourcePlatform
	Target   hypervisor.TargetPlatform
	Notifier notify.Notifier
	Scripts  []model.HelperScript

	closers []io.Closer
}

// MigrationHandler moves one CloudStack VM and its volumes from a source platform to a target platform.
type MigrationHandler struct {
	source    string
	target    string
	platforms *hypervisor.Registry

	config *config.Config
	base   *logger.Logger
	logger *logger.Logger
	deps   *Dependencies

	job         *model.MigrationJob
	state       State
	needToStop  bool
	autoStartVM bool
	pending     int
}

// NewMigrationHandler creates a handler that builds its adapters from platforms on Initialize.
func NewMigrationHandler(source, target string, platforms *hypervisor.Registry) *MigrationHandler {
	return &MigrationHandler{source: source, target: target, platforms: platforms}
}

// NewMigrationHandlerWithDependencies creates a handler around already built collaborators.
func NewMigrationHandlerWithDependencies(source, target string, deps Dependencies) *MigrationHandler {
	return &MigrationHandler{source: source, target: target, deps: &deps}
}

func (h *MigrationHandler) Name() string {
	return fmt.Sprintf("%s to %s Migration", platformTitle(h.source), platformTitle(h.target))
}

func (h *MigrationHandler) SourcePlatform() string { return h.source }
func (h *MigrationHandler) TargetPlatform() string { return h.target }

// State returns the phase the last Execute reached.
func (h *MigrationHandler) State() State { return h.state }

// Job returns the job of the last Execute.
func (h *MigrationHandler) Job() *model.MigrationJob { return h.job }

func platformTitle(name string) string {
	switch name {
	case model.PlatformXenServer:
		return "XenServer"
	case model.PlatformKVM:
		return "KVM"
	case model.PlatformOCI:
		return "OCI"
	case model.PlatformAzure:
		return "Azure"
	}
	return name
}

func (h *MigrationHandler) Initialize(cfg *config.Config, log *logger.Logger) error {
	h.config, h.base, h.logger = cfg, log, log
	if h.deps != nil {
		if h.deps.Notifier == nil {
			h.deps.Notifier = notify.NewLogNotifier(log)
		}
		return nil
	}

	deps, err := h.connect(context.Background())
	if err != nil {
		return err
	}
	h.deps = deps
	return nil
}

func (h *MigrationHandler) connect(ctx context.Context) (*Dependencies, error) {
	cfg, log := h.config, h.logger
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		_ = closeAll(deps.closers)
		return nil, err
	}

	bundle, err := helperScripts(cfg)
	if err != nil {
		return nil, err
	}
	deps.Scripts = bundle

	gateway, err := inventory.NewCloudStack(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CloudStack gateway: %w", err)
	}
	deps.Gateway = gateway
	deps.closers = append(deps.closers, gateway)

	executor, err := remote.NewSSHExecutor(cfg.Connection(), log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize SSH executor: %w", err))
	}
	deps.closers = append(deps.closers, executor)

	env := hypervisor.Env{
		Config:   cfg,
		Executor: executor,
		Pusher:   remote.NewSFTPPusher(executor),
		Logger:   log,
	}
	if deps.Source, err = h.platforms.Source(ctx, h.source, env); err != nil {
		return fail(fmt.Errorf("failed to initialize %s source: %w", h.source, err))
	}
	if deps.Target, err = h.platforms.Target(ctx, h.target, env); err != nil {
		return fail(fmt.Errorf("failed to initialize %s target: %w", h.target, err))
	}

	notifiers := []notify.Notifier{notify.NewLogNotifier(log)}
	if cfg.SlackWebhookURL != "" && !cfg.DryRun {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.SlackWebhookURL, nil))
	}
	deps.Notifier = notify.Multi(notifiers...)
	return deps, nil
}

// helperScripts returns the bundle pushed to the target: the embedded helpers merged with --helper-scripts.
func helperScripts(cfg *config.Config) ([]model.HelperScript, error) {
	bundle, err := scripts.Load(cfg.HelperScripts)
	if err != nil {
		return nil, fmt.Errorf("failed to load helper scripts: %w", err)
	}
	return bundle, nil
}

func closeAll(closers []io.Closer) error {
	var errList []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Close releases the connections opened by Initialize.
func (h *MigrationHandler) Close() error {
	if h.deps == nil {
		return nil
	}
	return closeAll(h.deps.closers)
}

func (h *MigrationHandler) Execute(ctx context.Context) error {
	h.job = model.NewMigrationJob()
	h.job.DryRun = h.config.DryRun
	h.job.Force = h.config.Force
	h.job.SkipDriverInjection = h.config.SkipDriverInjection
	h.job.Threads = h.config.Threads
	h.job.HelperScripts = h.deps.Scripts
	h.needToStop, h.autoStartVM, h.pending = false, false, 0
	h.logger = h.base.With("job", h.job.ID)

	h.logger.Info("=========================================")
	h.logger.Infof("Executing: %s", h.Name())
	h.logger.Info("=========================================")
	if h.job.DryRun {
		h.logger.Warning("Dry-run mode is enabled, not running any commands (use --exec to migrate)")
	}
	h.notify(ctx, notify.JobStarted, fmt.Sprintf("Migration of %s to cluster %s started", h.config.InstanceName, h.config.ToCluster), nil)

	steps := []struct {
		state   State
		desc    string
		skip    func() bool
		skipMsg string
		fn      func(context.Context) error
	}{
		{StateValidating, "Validating migration request", nil, "", h.validate},
		{StateAwaitingStop, "Stopping virtual machine", func() bool { return !h.needToStop }, "VM is not running; no need to stop it", h.stopVM},
		{StatePreparing, "Preparing source and target hosts", func() bool { return h.pending == 0 }, "All volumes already reside on the target pool; nothing to prepare", h.prepare},
		{StateTransferringVolumes, "Transferring volumes", nil, "", h.transferVolumes},
		{StateCommitting, "Recording migration in the inventory", nil, "", h.commit},
		{StateRestarting, "Starting virtual machine", func() bool { return !h.autoStartVM }, "VM was not running before migration; start it manually", h.restart},
	}
	for i, step := range steps {
		h.transition(step.state)
		h.logger.Step(i+1, step.desc)
		if step.skip != nil && step.skip() {
			h.logger.Warning(step.skipMsg)
			continue
		}
		if err := step.fn(ctx); err != nil {
			h.transition(StateAborted)
			h.report()
			h.logger.Errorf("%v", err)
			h.logger.Warning(errs.Guidance(err))
			h.notify(ctx, notify.MigrationAborted, errs.Guidance(err), err)
			return fmt.Errorf("migration aborted in state %s: %w", step.state, err)
		}
	}

	h.transition(StateDone)
	h.report()
	h.notify(ctx, notify.MigrationCompleted, fmt.Sprintf("Migrated to %s on pool %s", h.deps.Target.Name(), h.job.TargetPool.Name), nil)

	h.logger.Success("=========================================")
	if h.job.DryRun {
		h.logger.Success("Dry-run completed; run again with --exec to migrate")
	} else {
		h.logger.Successf("%s completed successfully!", h.Name())
	}
	h.logger.Success("=========================================")
	return nil
}

func (h *MigrationHandler) transition(state State) {
	h.state = state
	h.logger.Debugf("Migration state: %s", state)
}

func (h *MigrationHandler) notify(ctx context.Context, kind notify.EventKind, message string, cause error) {
	event := notify.Event{
		Kind:         kind,
		JobID:        h.job.ID,
		VMName:       h.job.VM.Name,
		InstanceName: h.config.InstanceName,
		Message:      message,
		Err:          cause,
	}
	if err := h.deps.Notifier.Notify(ctx, event); err != nil {
		h.logger.Warningf("Notification failed: %v", err)
	}
}

func (h *MigrationHandler) report() {
	for _, id := range h.job.ProgressOrder() {
		step, _ := h.job.Progress(id)
		h.logger.Infof("Volume %s: %s", id, step)
	}
}

// validate resolves every identifier and checks the VM, tags and volumes. It never changes anything.
func (h *MigrationHandler) validate(ctx context.Context) error {
	cfg, gw, job := h.config, h.deps.Gateway, h.job

	vm, err := gw.FindVirtualMachine(ctx, cfg.InstanceName, cfg.IsProjectVM)
	if err != nil {
		return errs.Validation(err, "could not find vm %s", cfg.InstanceName)
	}
	job.VM = vm
	h.logger.Successf("✓ Found vm %s (%s) with state %s on %s", vm.Name, vm.InstanceName, vm.RawState, vm.Hypervisor)

	cluster, err := gw.FindCluster(ctx, cfg.ToCluster)
	if err != nil {
		return errs.Validation(err, "cluster with name %q can not be found", cfg.ToCluster)
	}
	job.TargetCluster = cluster

	hosts, err := gw.ListClusterHosts(ctx, cluster.ID)
	if err != nil {
		return errs.Validation(err, "could not list hosts of cluster %s", cluster.Name)
	}
	if len(hosts) == 0 {
		return errs.Validation(nil, "cluster %s has no hosts", cluster.Name)
	}
	job.TargetHost = hosts[0]
	h.logger.Successf("✓ Target cluster %s, host %s", cluster.Name, job.TargetHost.Name)

	tmpl, err := gw.FindTemplate(ctx, cfg.NewBaseTemplate)
	if err != nil {
		return errs.Validation(err, "template %q can not be found", cfg.NewBaseTemplate)
	}
	job.TargetTemplate = tmpl

	pool, err := gw.SelectStoragePool(ctx, cluster.ID, cfg.StoragePool)
	if err != nil {
		return errs.Validation(err, "no usable storage pool in cluster %s", cluster.Name)
	}
	job.TargetPool = pool
	h.logger.Successf("✓ Target storage pool %s with tags '%s'", pool.Name, pool.TagString())

	if strings.EqualFold(vm.Hypervisor, h.deps.Target.Name()) {
		return errs.Validation(nil, "vm %s already runs on %s", vm.InstanceName, vm.Hypervisor)
	}

	switch vm.State {
	case model.PowerStateRunning:
		h.needToStop, h.autoStartVM = true, true
	case model.PowerStateStopped:
		h.needToStop, h.autoStartVM = false, false
	default:
		return errs.Validation(&errs.StateMismatchError{Subject: "vm " + vm.InstanceName, Expected: "Running or Stopped", Actual: vm.RawState},
			"vm %s needs to be Running or Stopped", vm.InstanceName)
	}

	if err := h.checkStorageTags(ctx); err != nil {
		return err
	}
	if err := h.loadVolumes(ctx); err != nil {
		return err
	}

	h.logger.Infof("Threads: %d (volumes are transferred one at a time)", job.Threads)
	return nil
}

func (h *MigrationHandler) checkStorageTags(ctx context.Context) error {
	pool := h.job.TargetPool
	offering, err := h.deps.Gateway.GetServiceOffering(ctx, h.job.VM.ServiceOfferingID)
	if err != nil {
		return errs.Validation(err, "could not read service offering %s", h.job.VM.ServiceOfferingID)
	}

	switch {
	case offering.StorageTags == "":
		h.logger.Warningf("Service offering %s has empty storage tags", offering.Name)
	case pool.HasTags(offering.StorageTags):
		h.logger.Success("✓ Storage tags look OK")
	case h.job.Force:
		h.logger.Warningf("Storage tags from storage pool '%s' do not match the service offering '%s'; continuing because of --force",
			pool.TagString(), offering.StorageTags)
	default:
		return errs.Validation(nil, "storage tags from storage pool '%s' do not match the service offering '%s'",
			pool.TagString(), offering.StorageTags)
	}
	return nil
}

// loadVolumes reads the volumes, enforces a single source pool and resolves the source host.
func (h *MigrationHandler) loadVolumes(ctx context.Context) error {
	gw, job := h.deps.Gateway, h.job

	volumes, err := gw.ListVolumes(ctx, job.VM.InstanceName)
	if err != nil {
		return errs.Validation(err, "could not list volumes of %s", job.VM.InstanceName)
	}
	if len(volumes) == 0 {
		return errs.Validation(nil, "vm %s has no volumes", job.VM.InstanceName)
	}

	first := volumes[0]
	for _, vol := range volumes {
		if vol.StoragePoolID != first.StoragePoolID {
			return errs.Validation(nil, "volume %s is on storage pool %s but volume %s is on %s; all volumes must share one storage pool",
				vol.ID, vol.StoragePoolName, first.ID, first.StoragePoolName)
		}
		if vol.StoragePoolID != job.TargetPool.ID {
			h.pending++
		}
	}
	job.Volumes = volumes
	h.logger.Successf("✓ Found %d volume(s) on storage pool %s", len(volumes), first.StoragePoolName)

	if h.pending == 0 {
		return nil
	}

	if job.VM.HostName != "" {
		host, err := gw.FindHostByName(ctx, job.VM.HostName)
		if err != nil {
			return errs.Validation(err, "could not find source host %s", job.VM.HostName)
		}
		job.SourceHost = host
	} else {
		pool, err := gw.FindStoragePool(ctx, first.StoragePoolID)
		if err != nil {
			return errs.Validation(err, "could not find source storage pool %s", first.StoragePoolName)
		}
		hosts, err := gw.ListClusterHosts(ctx, pool.ClusterID)
		if err != nil {
			return errs.Validation(err, "could not list hosts of source cluster %s", pool.ClusterID)
		}
		if len(hosts) == 0 {
			return errs.Validation(nil, "source cluster %s has no hosts", pool.ClusterID)
		}
		job.SourceHost = hosts[0]
	}
	h.logger.Successf("✓ Source host %s", job.SourceHost.Name)
	return nil
}

func (h *MigrationHandler) stopVM(ctx context.Context) error {
	vm := h.job.VM
	if h.job.DryRun {
		h.logger.Infof("Dry-run: would have stopped vm %s with id %s", vm.Name, vm.ID)
		return nil
	}

	h.logger.Infof("Stopping vm %s with id %s", vm.Name, vm.ID)
	state, err := h.deps.Gateway.StopVirtualMachine(ctx, vm.ID)
	if err != nil {
		h.notify(ctx, notify.StopFailed, "Could not stop VM "+vm.Name, err)
		return fmt.Errorf("failed to stop vm %s: %w", vm.Name, err)
	}
	if model.ParsePowerState(state) != model.PowerStateStopped {
		mismatch := &errs.StateMismatchError{Subject: "vm " + vm.Name, Expected: string(model.PowerStateStopped), Actual: state}
		h.notify(ctx, notify.StopFailed, "Could not stop VM "+vm.Name, mismatch)
		return mismatch
	}

	h.job.VM.State, h.job.VM.RawState = model.PowerStateStopped, state
	h.logger.Successf("✓ %s is stopped successfully", vm.Name)
	h.notify(ctx, notify.VMStopped, vm.Name+" is stopped", nil)
	return nil
}

func (h *MigrationHandler) prepare(ctx context.Context) error {
	job, source, target := h.job, h.deps.Source, h.deps.Target
	if job.DryRun {
		h.logger.Infof("Dry-run: would prepare the export area on %s and the migration folder on %s",
			job.SourceHost.Name, job.TargetHost.Name)
		if len(job.HelperScripts) > 0 {
			h.logger.Infof("Dry-run: would push %d helper script(s) to %s", len(job.HelperScripts), job.TargetHost.Name)
		}
		return nil
	}

	if err := source.PrepareExportArea(ctx, job.SourceHost); err != nil {
		return &errs.RemoteCommandError{Step: "PrepareExportArea", Host: job.SourceHost.Name, Err: err}
	}
	h.logger.Successf("✓ %s export area ready on %s", source.Name(), job.SourceHost.Name)

	if err := target.EnsureMigrationDirectory(ctx, job.TargetHost); err != nil {
		return &errs.RemoteCommandError{Step: "EnsureMigrationDirectory", Host: job.TargetHost.Name, Err: err}
	}
	h.logger.Successf("✓ Migration folder ready on %s", job.TargetHost.Name)

	if len(job.HelperScripts) > 0 {
		if err := target.PushHelperScripts(ctx, job.TargetHost, job.HelperScripts); err != nil {
			h.logger.Warningf("Failed to push helper scripts: %v", err)
		} else {
			h.logger.Successf("✓ Pushed %d helper script(s) to %s", len(job.HelperScripts), job.TargetHost.Name)
		}
	}
	return nil
}

func (h *MigrationHandler) transferVolumes(ctx context.Context) error {
	job := h.job
	p := pipeline.New(h.deps.Source, h.deps.Target, h.logger, pipeline.Options{
		DryRun:              job.DryRun,
		SkipDriverInjection: job.SkipDriverInjection,
		OnStage: func(volumeID string, stage pipeline.Stage) {
			job.RecordProgress(volumeID, stage.String())
		},
	})

	for i, vol := range job.Volumes {
		job.CurrentVolume = i
		h.logger.Infof("Volume %d/%d: %s (%s, %s)", i+1, len(job.Volumes), vol.Name, vol.ID, vol.Kind)

		state, err := h.deps.Gateway.VolumeAttachmentState(ctx, vol.ID)
		if err != nil {
			return fmt.Errorf("failed to read state of volume %s: %w", vol.ID, err)
		}
		if state != model.PowerStateStopped {
			if !(job.DryRun && h.needToStop) {
				return &errs.StateMismatchError{Subject: "volume " + vol.ID, Expected: string(model.PowerStateStopped), Actual: string(state)}
			}
			h.logger.Infof("Dry-run: volume %s is attached to a %s vm that would have been stopped", vol.ID, state)
		}

		if vol.StoragePoolID == job.TargetPool.ID {
			h.logger.Infof("Volume %s already resides on storage pool %s; skipping", vol.ID, job.TargetPool.Name)
			job.RecordProgress(vol.ID, progressSkipped)
			continue
		}

		if _, err := p.Run(ctx, vol, job.SourceHost, job.TargetHost); err != nil {
			return err
		}
	}
	return nil
}

func (h *MigrationHandler) commit(ctx context.Context) error {
	job := h.job
	commit := model.Commit{
		InstanceName:    job.VM.InstanceName,
		TemplateID:      job.TargetTemplate.ID,
		StoragePoolName: job.TargetPool.Name,
		Hypervisor:      h.deps.Target.Name(),
	}
	if job.DryRun {
		h.logger.Infof("Dry-run: would have recorded %s on %s with template %s and storage pool %s",
			commit.InstanceName, commit.Hypervisor, job.TargetTemplate.Name, commit.StoragePoolName)
		return nil
	}

	if err := h.deps.Gateway.CommitMigration(ctx, commit); err != nil {
		return &errs.CommitError{InstanceName: commit.InstanceName, Err: err}
	}
	h.logger.Successf("✓ Recorded %s on %s with template %s and storage pool %s",
		commit.InstanceName, commit.Hypervisor, job.TargetTemplate.Name, commit.StoragePoolName)
	return nil
}

// restart starts the VM again. A failed start is reported but does not fail the migration.
func (h *MigrationHandler) restart(ctx context.Context) error {
	vm := h.job.VM
	if h.job.DryRun {
		h.logger.Infof("Dry-run: would have started vm %s with id %s", vm.Name, vm.ID)
		return nil
	}

	h.logger.Infof("Starting vm %s with id %s", vm.Name, vm.ID)
	state, err := h.deps.Gateway.StartVirtualMachine(ctx, vm.ID)
	if err != nil {
		h.logger.Warningf("Failed to start vm %s: %v; the migration itself succeeded, start it manually", vm.Name, err)
		h.notify(ctx, notify.StartFailed, "Could not start VM "+vm.Name, err)
		return nil
	}
	if model.ParsePowerState(state) != model.PowerStateRunning {
		mismatch := &errs.StateMismatchError{Subject: "vm " + vm.Name, Expected: string(model.PowerStateRunning), Actual: state}
		h.logger.Warningf("%v; the migration itself succeeded, check the vm manually", mismatch)
		h.notify(ctx, notify.StartFailed, "Could not start VM "+vm.Name, mismatch)
		return nil
	}

	h.job.VM.State, h.job.VM.RawState = model.PowerStateRunning, state
	h.logger.Successf("✓ %s is running on %s", vm.Name, h.deps.Target.Name())
	h.notify(ctx, notify.VMStarted, vm.Name+" is running", nil)
	return nil
}
