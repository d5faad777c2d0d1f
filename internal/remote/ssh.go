package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/codebypatrickleung/hvshift/internal/config"
	"github.com/codebypatrickleung/hvshift/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHExecutor runs commands over SSH, keeping one client per host for the life of the job.
type SSHExecutor struct {
	conn         config.ConnectionConfig
	clientConfig *ssh.ClientConfig
	logger       *logger.Logger

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHExecutor creates an executor from the job's connection settings.
func NewSSHExecutor(conn config.ConnectionConfig, log *logger.Logger) (*SSHExecutor, error) {
	authMethods, err := authMethods(conn, log)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if conn.KnownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(conn.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts file %s: %w", conn.KnownHostsFile, err)
		}
	} else {
		log.Warning("Skipping host key verification, set --ssh-known-hosts to enable it")
	}

	return &SSHExecutor{
		conn: conn,
		clientConfig: &ssh.ClientConfig{
			User:            conn.User,
			Auth:            authMethods,
			HostKeyCallback: hostKeyCallback,
			Timeout:         conn.Timeout,
		},
		logger:  log,
		clients: make(map[string]*ssh.Client),
	}, nil
}

func authMethods(conn config.ConnectionConfig, log *logger.Logger) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		agentConn, err := net.Dial("unix", socket)
		if err != nil {
			log.Debugf("No connection to ssh agent, skipping agent authentication: %v", err)
		} else {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
		}
	}

	if conn.KeyFile != "" {
		key, err := os.ReadFile(conn.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if conn.Password != "" {
		methods = append(methods, ssh.Password(conn.Password))
	}
	return methods, nil
}

// Run executes command on host. A non-zero exit status is returned as an error carrying the output.
func (e *SSHExecutor) Run(ctx context.Context, host, command string) (string, error) {
	client, err := e.client(ctx, host)
	if err != nil {
		return "", err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session on %s: %w", host, err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output

	e.logger.Debugf("[%s] %s", host, command)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return output.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			return output.String(), fmt.Errorf("command failed: %w, output: %s", err, output.String())
		}
		return output.String(), nil
	}
}

// Client returns the cached SSH client for host, dialing it on first use.
func (e *SSHExecutor) Client(ctx context.Context, host string) (*ssh.Client, error) {
	return e.client(ctx, host)
}

func (e *SSHExecutor) client(ctx context.Context, host string) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[host]; ok {
		return client, nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(e.conn.Port))
	dialer := net.Dialer{Timeout: e.conn.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	e.clients[host] = client
	return client, nil
}

// Close closes every cached client.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for host, client := range e.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection to %s: %w", host, err))
		}
		delete(e.clients, host)
	}
	return errors.Join(errs...)
}
