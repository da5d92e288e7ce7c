package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bamsammich/salvage/internal/config"
	"github.com/bamsammich/salvage/internal/transport"
)

// sourceFlags select and authenticate the volume being read.
type sourceFlags struct {
	sshKey        string
	sshPort       int
	knownHosts    string
	insecureHosts bool
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.sshKey, "ssh-key", "", "SSH private key file (default: agent, then ~/.ssh/id_*)")
	fs.IntVar(&f.sshPort, "ssh-port", 22, "SSH port")
	fs.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file (default: ~/.ssh/known_hosts)")
	fs.BoolVar(&f.insecureHosts, "insecure-skip-host-key", false, "do not verify the remote host key")
}

// applyConfig fills SSH settings from the config file for flags the user
// did not set.
func (f *sourceFlags) applyConfig(fs *pflag.FlagSet, c config.SSHConfig) {
	if !fs.Changed("ssh-key") && c.Key != nil {
		f.sshKey = *c.Key
	}
	if !fs.Changed("ssh-port") && c.Port != nil {
		f.sshPort = *c.Port
	}
	if !fs.Changed("known-hosts") && c.KnownHosts != nil {
		f.knownHosts = *c.KnownHosts
	}
}

// openSource opens a reader for a SOURCE argument. The returned close
// function is never nil.
//
//nolint:ireturn // the reader kind depends on the location
func openSource(arg string, f sourceFlags, opts transport.WriteOpts) (transport.Reader, func(), error) {
	loc := transport.ParseLocation(arg)
	if !loc.IsRemote() {
		r, err := transport.NewLocalReader(loc.Path, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", loc, err)
		}
		return r, func() {}, nil
	}

	slog.Debug("connecting", "host", loc.Host, "user", loc.User, "path", loc.Path)
	r, err := transport.DialSFTPReader(loc, transport.SSHOpts{
		KeyFile:        f.sshKey,
		Port:           f.sshPort,
		KnownHosts:     f.knownHosts,
		InsecureNoHost: f.insecureHosts,
	}, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", loc, err)
	}
	return r, closeQuietly(r), nil
}

func closeQuietly(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Debug("close source", "error", err)
		}
	}
}

var errRemoteDest = errors.New("destination must be a local path")

func localDest(arg string) (string, error) {
	loc := transport.ParseLocation(arg)
	if loc.IsRemote() {
		return "", errRemoteDest
	}
	return loc.Path, nil
}
