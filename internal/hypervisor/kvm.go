package hypervisor

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/codebypatrickleung/hvshift/internal/remote"
)

const migrationDir = "migration"

// KVMTarget converts and places volumes on a KVM host's shared storage mount.
type KVMTarget struct {
	executor     remote.Executor
	pusher       remote.FilePusher
	logger       *logger.Logger
	mountPattern string

	mu     sync.Mutex
	mounts map[string]string
}

// NewKVMTarget creates a KVM target adapter. mountPattern selects the storage mount from `mount` output.
func NewKVMTarget(executor remote.Executor, pusher remote.FilePusher, mountPattern string, log *logger.Logger) *KVMTarget {
	return &KVMTarget{
		executor:     executor,
		pusher:       pusher,
		logger:       log,
		mountPattern: mountPattern,
		mounts:       make(map[string]string),
	}
}

func (k *KVMTarget) Name() string { return "KVM" }

// ResolveMountPoint finds the storage mount of host. The result is cached per host.
func (k *KVMTarget) ResolveMountPoint(ctx context.Context, host model.Host) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if mount, ok := k.mounts[host.Address()]; ok {
		return mount, nil
	}

	command := fmt.Sprintf("mount | grep %s | awk '{print $3}'", remote.Command(k.mountPattern))
	output, err := k.executor.Run(ctx, host.Address(), command)
	if err != nil {
		return "", fmt.Errorf("failed to look up storage mount on %s: %w", host.Name, err)
	}
	mount := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	if mount == "" {
		return "", fmt.Errorf("no mount matching %q found on %s", k.mountPattern, host.Name)
	}
	k.logger.Debugf("Found storage mount %s on %s", mount, host.Name)
	k.mounts[host.Address()] = mount
	return mount, nil
}

func (k *KVMTarget) migrationPath(ctx context.Context, host model.Host) (string, string, error) {
	mount, err := k.ResolveMountPoint(ctx, host)
	if err != nil {
		return "", "", err
	}
	return mount, path.Join(mount, migrationDir) + "/", nil
}

// run executes args inside the migration directory of host.
func (k *KVMTarget) run(ctx context.Context, host model.Host, args ...string) error {
	_, dir, err := k.migrationPath(ctx, host)
	if err != nil {
		return err
	}
	command := fmt.Sprintf("cd %s && %s", remote.Command(dir), remote.Command(args...))
	if _, err := k.executor.Run(ctx, host.Address(), command); err != nil {
		return err
	}
	return nil
}

// EnsureMigrationDirectory creates <mount>/migration/ on host.
func (k *KVMTarget) EnsureMigrationDirectory(ctx context.Context, host model.Host) error {
	_, dir, err := k.migrationPath(ctx, host)
	if err != nil {
		return err
	}
	if _, err := k.executor.Run(ctx, host.Address(), remote.Command("mkdir", "-p", dir)); err != nil {
		return fmt.Errorf("failed to create migration folder on %s: %w", host.Name, err)
	}
	return nil
}

// Fetch downloads url into <name>.vhd in the migration directory.
func (k *KVMTarget) Fetch(ctx context.Context, host model.Host, url, name string) error {
	if err := k.run(ctx, host, "wget", "-q", "-O", name+".vhd", url); err != nil {
		return fmt.Errorf("failed to download %s: %w", name, err)
	}
	return nil
}

// ConvertToNativeFormat converts <name>.vhd into a compressed qcow2 image named <name>.
func (k *KVMTarget) ConvertToNativeFormat(ctx context.Context, host model.Host, name string) error {
	if err := k.run(ctx, host, "qemu-img", "convert", name+".vhd", "-O", "qcow2", "-c", name); err != nil {
		return fmt.Errorf("failed to convert %s to qcow2: %w", name, err)
	}
	return nil
}

// GrowPartition pads the image so the boot partition survives driver injection.
func (k *KVMTarget) GrowPartition(ctx context.Context, host model.Host, name string, paddingBytes int64) error {
	if err := k.run(ctx, host, "qemu-img", "resize", name, "+"+strconv.FormatInt(paddingBytes, 10)); err != nil {
		return fmt.Errorf("failed to resize %s: %w", name, err)
	}
	return nil
}

// InjectDrivers runs virt-v2v on the image, producing <name>-sda.
func (k *KVMTarget) InjectDrivers(ctx context.Context, host model.Host, name string) error {
	if err := k.run(ctx, host, "virt-v2v", "-i", "disk", name, "-o", "local", "-os", "./"); err != nil {
		return fmt.Errorf("failed to inject drivers into %s: %w", name, err)
	}
	return nil
}

// Place moves the finished image to <mount>/<name>.
func (k *KVMTarget) Place(ctx context.Context, host model.Host, name string, injected bool) error {
	mount, _, err := k.migrationPath(ctx, host)
	if err != nil {
		return err
	}
	source := name
	if injected {
		source = name + "-sda"
	}
	if err := k.run(ctx, host, "mv", source, path.Join(mount, name)); err != nil {
		return fmt.Errorf("failed to move %s into the storage pool: %w", name, err)
	}
	return nil
}

// PushHelperScripts uploads scripts into the migration directory.
func (k *KVMTarget) PushHelperScripts(ctx context.Context, host model.Host, scripts []model.HelperScript) error {
	if k.pusher == nil {
		return fmt.Errorf("no file pusher configured")
	}
	_, dir, err := k.migrationPath(ctx, host)
	if err != nil {
		return err
	}
	if err := k.pusher.Push(ctx, host.Address(), dir, scripts); err != nil {
		return fmt.Errorf("failed to push helper scripts to %s: %w", host.Name, err)
	}
	return nil
}
