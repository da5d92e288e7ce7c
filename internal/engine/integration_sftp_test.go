//go:build integration

package engine_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/ssh"

	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/transport"
)

// startSFTPContainer starts an atmoz/sftp container with dir bind-mounted at
// /home/testuser/data. Returns host and port for SSH.
func startSFTPContainer(t *testing.T, dir string) (host string, port int) {
	t.Helper()
	ctx := context.Background()

	// Use the host uid/gid so the bind mount stays readable.
	userSpec := fmt.Sprintf("testuser:testpass:%d:%d:data", os.Getuid(), os.Getgid())

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "atmoz/sftp:latest",
			ExposedPorts: []string{"22/tcp"},
			Cmd:          []string{userSpec},
			Mounts: testcontainers.Mounts(
				testcontainers.BindMount(dir, "/home/testuser/data"),
			),
			WaitingFor: wait.ForListeningPort("22/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	}

	ctr, err := testcontainers.GenericContainer(ctx, req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	h, err := ctr.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := ctr.MappedPort(ctx, "22/tcp")
	require.NoError(t, err)
	p, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return h, p
}

// dialTestSSH connects with password auth, retrying while sshd starts.
func dialTestSSH(t *testing.T, host string, port int) *ssh.Client {
	t.Helper()

	config := &ssh.ClientConfig{
		User:            "testuser",
		Auth:            []ssh.AuthMethod{ssh.Password("testpass")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // throwaway test container
		Timeout:         5 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	var client *ssh.Client
	var err error
	for range 10 {
		client, err = ssh.Dial("tcp", addr, config)
		if err == nil {
			t.Cleanup(func() { client.Close() })
			return client
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err, "failed to connect to SFTP container at %s after retries", addr)
	return nil
}

func TestIntegrationSFTPRecovery(t *testing.T) {
	t.Parallel()
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	createTestVolume(t, srcDir)
	require.NoError(t, os.Chmod(srcDir, 0o777))

	host, port := startSFTPContainer(t, srcDir)
	sshClient := dialTestSSH(t, host, port)

	client, err := sftp.NewClient(sshClient)
	require.NoError(t, err)
	r, err := transport.NewSFTPReader(client, "/data", transport.WriteOpts{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	scan, res := runRecovery(t, r, dstDir, true)
	assert.Equal(t, int64(4), scan.Files)
	assert.Equal(t, engine.CopyCompleted, res.Outcome)
	assert.Equal(t, int64(4), res.Copied)
	assert.Zero(t, res.VerifyFailures)

	verifyRecovered(t, srcDir, dstDir)
}
