// Package transport is the boundary to the device link. The protocol core
// never opens sockets or moves files itself; it asks a Device to dial the
// app's control service or to transfer a file, and the Device hides how
// the link is actually multiplexed.
package transport

import (
	"context"
	"errors"
	"net"
)

// ErrNoService indicates the target app's control service could not be
// reached: the app is not running, or never started its agent.
var ErrNoService = errors.New("control service not available")

// Device is one reachable device. Service connections carry the live
// protocol; file transfer is the out-of-band channel used for build
// artifacts and never touches the protocol socket.
type Device interface {
	// Serial identifies the device, for logs and deployment records.
	Serial() string

	// DialService opens a duplex byte stream to the named control
	// service on the device. The name is the target app's identifier.
	DialService(ctx context.Context, service string) (net.Conn, error)

	// PushFile copies a local file to the given device path, creating
	// parent directories as needed.
	PushFile(localPath, devicePath string) error

	// PullFile copies a device file to the given local path. Reading a
	// device path that does not exist returns an error satisfying
	// errors.Is(err, fs.ErrNotExist).
	PullFile(devicePath, localPath string) error
}
