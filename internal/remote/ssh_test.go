package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startSSHServer serves exec requests: "false" exits 1, "stream" writes until the session closes,
// anything else echoes the command.
func startSSHServer(t *testing.T) int {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(key)
	require.NoError(t, err)

	serverConfig := &ssh.ServerConfig{NoClientAuth: true}
	serverConfig.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(nc, serverConfig)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func serveSSH(nc net.Conn, serverConfig *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, serverConfig)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer channel.Close()
			for req := range requests {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					req.Reply(false, nil)
					return
				}
				req.Reply(true, nil)

				if payload.Command == "stream" {
					for {
						if _, err := fmt.Fprint(channel, "tick\n"); err != nil {
							return
						}
						time.Sleep(10 * time.Millisecond)
					}
				}

				status := uint32(0)
				if payload.Command == "false" {
					status = 1
					fmt.Fprint(channel.Stderr(), "boom")
				} else {
					fmt.Fprintf(channel, "ran: %s", payload.Command)
				}
				channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				return
			}
		}()
	}
}

func newTestExecutor(t *testing.T, port int) *SSHExecutor {
	t.Helper()
	t.Setenv("SSH_AUTH_SOCK", "")

	executor, err := NewSSHExecutor(config.ConnectionConfig{
		User:    "root",
		Port:    port,
		Timeout: 5 * time.Second,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { executor.Close() })
	return executor
}

func TestSSHExecutorRun(t *testing.T) {
	executor := newTestExecutor(t, startSSHServer(t))

	output, err := executor.Run(context.Background(), "127.0.0.1", "mkdir -p /mnt/storage/migration/")
	require.NoError(t, err)
	assert.Equal(t, "ran: mkdir -p /mnt/storage/migration/", output)

	output, err = executor.Run(context.Background(), "127.0.0.1", "echo again")
	require.NoError(t, err)
	assert.Equal(t, "ran: echo again", output)
	assert.Len(t, executor.clients, 1, "connection is reused per host")
}

func TestSSHExecutorRunFailure(t *testing.T) {
	executor := newTestExecutor(t, startSSHServer(t))

	output, err := executor.Run(context.Background(), "127.0.0.1", "false")
	require.Error(t, err)
	assert.Equal(t, "boom", output)
	assert.Contains(t, err.Error(), "output: boom")

	var exitErr *ssh.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitStatus())
}

func TestSSHExecutorRunCanceled(t *testing.T) {
	executor := newTestExecutor(t, startSSHServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	output, err := executor.Run(ctx, "127.0.0.1", "stream")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, strings.HasPrefix(output, "tick\n"), output)
}

func TestSSHExecutorConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	executor := newTestExecutor(t, port)
	_, err = executor.Run(context.Background(), "127.0.0.1", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to "+net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

func TestNewSSHExecutorBadKeyFile(t *testing.T) {
	_, err := NewSSHExecutor(config.ConnectionConfig{KeyFile: "/nonexistent/id_rsa"}, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read ssh key file")
}

func TestNewSSHExecutorBadKnownHosts(t *testing.T) {
	_, err := NewSSHExecutor(config.ConnectionConfig{KnownHostsFile: "/nonexistent/known_hosts"}, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load known hosts file")
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "qemu-img convert vol-a.vhd -O qcow2 -c vol-a", Command("qemu-img", "convert", "vol-a.vhd", "-O", "qcow2", "-c", "vol-a"))
	assert.Equal(t, `mkdir -p '/mnt/my storage/migration/'`, Command("mkdir", "-p", "/mnt/my storage/migration/"))
}
