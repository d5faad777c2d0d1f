package hypervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/codebypatrickleung/hvshift/internal/remote"
)

const (
	xenExportDir  = "/opt/hvshift/export"
	xenExportPort = 50000

	xenServerPidFile = "server.pid"
)

// XenServerSource exports VDIs as VHD files served over HTTP from the pool master.
type XenServerSource struct {
	executor  remote.Executor
	logger    *logger.Logger
	exportDir string
	server    string
}

// NewXenServerSource creates a XenServer source adapter.
func NewXenServerSource(executor remote.Executor, log *logger.Logger) *XenServerSource {
	return &XenServerSource{
		executor:  executor,
		logger:    log,
		exportDir: xenExportDir,
		server:    fmt.Sprintf("python -m SimpleHTTPServer %d", xenExportPort),
	}
}

func (x *XenServerSource) Name() string { return "XenServer" }

// PrepareExportArea creates the export directory and starts the file server unless the process
// recorded in its pid file is still alive.
func (x *XenServerSource) PrepareExportArea(ctx context.Context, host model.Host) error {
	if _, err := x.executor.Run(ctx, host.Address(), x.exportAreaCommand()); err != nil {
		return fmt.Errorf("failed to prepare export folder on %s: %w", host.Name, err)
	}
	return nil
}

func (x *XenServerSource) exportAreaCommand() string {
	return fmt.Sprintf("%s && cd %s && (kill -0 \"$(cat %s 2>/dev/null)\" 2>/dev/null || { nohup %s </dev/null >/dev/null 2>&1 & echo $! > %s; })",
		remote.Command("mkdir", "-p", x.exportDir),
		remote.Command(x.exportDir),
		xenServerPidFile,
		x.server,
		xenServerPidFile)
}

// RequestTransferURL exports the VDI to <uuid>.vhd and returns its download URL.
func (x *XenServerSource) RequestTransferURL(ctx context.Context, volumeID string, host model.Host) (string, error) {
	file := volumeID + ".vhd"
	command := fmt.Sprintf("cd %s && xe vdi-export %s %s format=vhd >/dev/null && ls %s",
		remote.Command(x.exportDir),
		remote.Command("uuid="+volumeID),
		remote.Command("filename="+file),
		remote.Command(file))
	output, err := x.executor.Run(ctx, host.Address(), command)
	if err != nil {
		return "", fmt.Errorf("failed to export vdi %s: %w", volumeID, err)
	}
	if strings.TrimSpace(output) != file {
		x.logger.Debugf("Export of %s produced %q", volumeID, output)
		return "", nil
	}
	return fmt.Sprintf("http://%s:%d/%s", host.Address(), xenExportPort, file), nil
}
