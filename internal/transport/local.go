package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// LocalDevice implements Device for the same-machine case: control
// services are unix sockets in a shared namespace directory, and the
// device filesystem is a directory subtree. This is the transport the
// demo daemon and the test suites run against.
type LocalDevice struct {
	serial    string
	socketDir string
	fileRoot  string
}

// NewLocalDevice returns a LocalDevice whose service sockets live in
// socketDir and whose files live under fileRoot.
func NewLocalDevice(serial, socketDir, fileRoot string) *LocalDevice {
	return &LocalDevice{serial: serial, socketDir: socketDir, fileRoot: fileRoot}
}

func (d *LocalDevice) Serial() string { return d.serial }

// SocketPath returns the socket path for a named control service.
func SocketPath(socketDir, service string) string {
	return filepath.Join(socketDir, service+".sock")
}

func (d *LocalDevice) DialService(ctx context.Context, service string) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", SocketPath(d.socketDir, service))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoService, service, err)
	}
	return conn, nil
}

func (d *LocalDevice) PushFile(localPath, devicePath string) error {
	dst := d.devicePath(devicePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create device dir: %w", err)
	}
	return copyFile(localPath, dst)
}

func (d *LocalDevice) PullFile(devicePath, localPath string) error {
	return copyFile(d.devicePath(devicePath), localPath)
}

// devicePath maps a device path onto the file root. Device paths are
// rooted: leading separators and parent traversal are stripped.
func (d *LocalDevice) devicePath(p string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(p))
	return filepath.Join(d.fileRoot, clean)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}

// Listen opens the unix socket for a named control service, replacing a
// stale socket left by a previous process.
func Listen(socketDir, service string) (net.Listener, error) {
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	path := SocketPath(socketDir, service)
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("socket path exists and is not a unix socket: %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return listener, nil
}
