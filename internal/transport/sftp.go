package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/sftp"
)

// Compile-time interface checks.
var (
	_ Reader    = (*SFTPReader)(nil)
	_ Hasher    = (*SFTPReader)(nil)
	_ io.Closer = (*SFTPReader)(nil)
)

// SFTPReader reads a volume mounted on a remote host over SFTP.
//
// SFTP does not expose inode numbers, so inodes are synthesized from the
// remote path. They are stable for the life of the tree, which is all the
// scanner and view matching need.
type SFTPReader struct {
	client    *sftp.Client
	conn      io.Closer // underlying SSH connection, may be nil
	root      RawEntry
	totalSize uint64
	opts      WriteOpts
}

// NewSFTPReader creates a reader rooted at root on an established SFTP
// session. Close closes the client.
func NewSFTPReader(client *sftp.Client, root string, opts WriteOpts) (*SFTPReader, error) {
	root = path.Clean(root)
	info, err := client.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: sftp stat %s: %v", ErrIO, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnsupported, root)
	}

	entry := sftpEntry(root, info)
	entry.Name = "/"

	var total uint64
	if vfs, err := client.StatVFS(root); err == nil {
		total = vfs.TotalSpace()
	}

	return &SFTPReader{
		client:    client,
		root:      entry,
		totalSize: total,
		opts:      opts,
	}, nil
}

// DialSFTPReader connects to loc over SSH and opens an SFTP reader at loc.Path.
func DialSFTPReader(loc Location, sshOpts SSHOpts, opts WriteOpts) (*SFTPReader, error) {
	sshClient, err := DialSSH(loc.Host, loc.User, sshOpts)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	r, err := NewSFTPReader(client, loc.Path, opts)
	if err != nil {
		client.Close()
		sshClient.Close()
		return nil, err
	}
	r.conn = sshClient
	return r, nil
}

func (r *SFTPReader) Root() RawEntry    { return r.root }
func (r *SFTPReader) TotalSize() uint64 { return r.totalSize }

func (r *SFTPReader) ListChildren(_ context.Context, dir Handle) ([]RawEntry, error) {
	infos, err := r.client.ReadDir(dir.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: sftp readdir %s: %v", ErrIO, dir.Ref, err)
	}

	entries := make([]RawEntry, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() && !info.IsDir() {
			continue
		}
		entries = append(entries, sftpEntry(path.Join(dir.Ref, info.Name()), info))
	}
	return entries, nil
}

func (r *SFTPReader) CopyFile(ctx context.Context, h Handle, dst string) CopyStatus {
	info, err := r.client.Lstat(h.Ref)
	if err != nil || !info.Mode().IsRegular() {
		return StatFailed
	}

	f, err := r.client.Open(h.Ref)
	if err != nil {
		return OpenFailed
	}
	defer f.Close()

	return writeDest(ctx, f, dst, info.ModTime(), r.opts)
}

func (r *SFTPReader) Hash(_ context.Context, h Handle) (string, error) {
	f, err := r.client.Open(h.Ref)
	if err != nil {
		return "", fmt.Errorf("sftp open %s: %w", h.Ref, err)
	}
	defer f.Close()
	return hashReader(f)
}

func (r *SFTPReader) Close() error {
	err := r.client.Close()
	if r.conn != nil {
		if connErr := r.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
	}
	return err
}

func sftpEntry(p string, info os.FileInfo) RawEntry {
	ino := synthInode(p)
	return RawEntry{
		Name:    info.Name(),
		Inode:   ino,
		Handle:  Handle{Ref: p, Inode: ino},
		IsDir:   info.IsDir(),
		Size:    uint64(info.Size()), //nolint:gosec // G115: sizes are non-negative
		ModTime: info.ModTime(),
	}
}

// synthInode derives a stable inode number from a remote path. Values 0 and
// 1 are reserved by the scanner, so they are shifted out of range.
func synthInode(p string) uint64 {
	h := xxhash.Sum64String(p)
	if h < 2 {
		h += 2
	}
	return h
}
