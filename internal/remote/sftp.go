package remote

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/codebypatrickleung/hvshift/internal/model"
	"github.com/pkg/sftp"
)

const defaultScriptMode os.FileMode = 0755

// SFTPOpener opens an SFTP session to host.
type SFTPOpener func(ctx context.Context, host string) (*sftp.Client, error)

// SFTPPusher uploads helper scripts over SFTP.
type SFTPPusher struct {
	open SFTPOpener
}

// NewSFTPPusher creates a pusher that reuses the executor's SSH connections.
func NewSFTPPusher(executor *SSHExecutor) *SFTPPusher {
	return NewSFTPPusherWithOpener(func(ctx context.Context, host string) (*sftp.Client, error) {
		client, err := executor.Client(ctx, host)
		if err != nil {
			return nil, err
		}
		return sftp.NewClient(client)
	})
}

// NewSFTPPusherWithOpener creates a pusher with a custom session opener.
func NewSFTPPusherWithOpener(open SFTPOpener) *SFTPPusher {
	return &SFTPPusher{open: open}
}

// Push writes every script into dir on host and makes it executable.
func (p *SFTPPusher) Push(ctx context.Context, host, dir string, scripts []model.HelperScript) error {
	client, err := p.open(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to open sftp session on %s: %w", host, err)
	}
	defer client.Close()

	if err := client.MkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	for _, script := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := path.Join(dir, script.Name)
		if err := writeFile(client, target, script.Content); err != nil {
			return err
		}
		mode := script.Mode
		if mode == 0 {
			mode = defaultScriptMode
		}
		if err := client.Chmod(target, mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", target, err)
		}
	}
	return nil
}

func writeFile(client *sftp.Client, target string, content []byte) error {
	f, err := client.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	return nil
}
