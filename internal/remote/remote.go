// Package remote runs commands on and pushes files to hypervisor hosts.
package remote

import (
	"context"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/kballard/go-shellquote"
)

// Executor runs a shell command on a host and returns its combined output.
type Executor interface {
	Run(ctx context.Context, host, command string) (string, error)
}

// FilePusher copies helper scripts into a directory on a host.
type FilePusher interface {
	Push(ctx context.Context, host, dir string, scripts []model.HelperScript) error
}

// Command joins args into a single shell-safe command line.
func Command(args ...string) string {
	return shellquote.Join(args...)
}
