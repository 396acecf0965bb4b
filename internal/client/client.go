// Package client implements the desktop-side request invoker: one fresh
// connection per operation, handshake, exactly one command, response,
// close. Retry policy belongs to callers; the invoker surfaces transport
// failures verbatim.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/applift/devlink/internal/buildid"
	"github.com/applift/devlink/internal/protocol"
	"github.com/applift/devlink/internal/transport"
)

// ErrVersionMismatch indicates the agent speaks a different protocol
// version. It is only returned in strict mode; otherwise mismatch is
// logged and the operation proceeds on a best-effort basis.
var ErrVersionMismatch = errors.New("protocol version mismatch")

// AppState is the liveness classification a ping yields.
type AppState int

const (
	// StateForeground means the app is running with a foreground surface.
	StateForeground AppState = iota
	// StateBackground means the app is running without one.
	StateBackground
)

func (s AppState) String() string {
	if s == StateForeground {
		return "foreground"
	}
	return "background"
}

// Communicator writes one command's request and reads its response on a
// live, already-handshaken connection.
type Communicator func(r *protocol.Reader, w *protocol.Writer) error

// Option configures a Client.
type Option func(*Client)

// WithStrictVersion makes every invocation fail with ErrVersionMismatch
// when the agent's protocol version differs, instead of proceeding.
func WithStrictVersion() Option {
	return func(c *Client) { c.strict = true }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client issues control-channel commands to one app on one device.
// It holds no connection state between calls and is safe for concurrent
// use as long as the underlying Device is.
type Client struct {
	device transport.Device
	appID  string
	token  int64
	strict bool
	log    zerolog.Logger
}

// New returns a Client for the app identified by appID on device. The
// token authorizes privileged commands.
func New(device transport.Device, appID string, token int64, opts ...Option) *Client {
	c := &Client{
		device: device,
		appID:  appID,
		token:  token,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke opens a connection, runs the handshake, hands the connection to
// fn for exactly one command exchange, and closes it. The connection is
// closed on every exit path.
func (c *Client) Invoke(ctx context.Context, fn Communicator) error {
	conn, err := c.device.DialService(ctx, c.appID)
	if err != nil {
		return fmt.Errorf("dial control service: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	if err := w.Int64(protocol.Magic); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if err := w.Int32(protocol.Version); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	agentVersion, err := r.Int32()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if agentVersion != protocol.Version {
		if c.strict {
			return fmt.Errorf("%w: agent speaks %d, client speaks %d",
				ErrVersionMismatch, agentVersion, protocol.Version)
		}
		// The agent will close on its side; proceeding lets a newer
		// client fail with a precise error instead of guessing.
		c.log.Warn().
			Int32("agent_version", agentVersion).
			Int32("client_version", protocol.Version).
			Msg("protocol version mismatch, proceeding anyway")
	}

	if err := fn(r, w); err != nil {
		return err
	}

	// Best-effort: let the agent end its loop cleanly instead of on EOF.
	w.Int32(protocol.CmdEOF) //nolint:errcheck
	return nil
}

// AppState pings the app and classifies its liveness.
func (c *Client) AppState(ctx context.Context) (AppState, error) {
	var state AppState
	err := c.Invoke(ctx, func(r *protocol.Reader, w *protocol.Writer) error {
		if err := w.Int32(protocol.CmdPing); err != nil {
			return err
		}
		foreground, err := r.Bool()
		if err != nil {
			return fmt.Errorf("read ping reply: %w", err)
		}
		if foreground {
			state = StateForeground
		} else {
			state = StateBackground
		}
		return nil
	})
	return state, err
}

// ShowToast displays message on the app's foreground surface. The app
// silently drops it when no surface is in the foreground.
func (c *Client) ShowToast(ctx context.Context, message string) error {
	return c.Invoke(ctx, func(r *protocol.Reader, w *protocol.Writer) error {
		if err := w.Int32(protocol.CmdShowToast); err != nil {
			return err
		}
		return w.String(message)
	})
}

// RestartActivity restarts the app's foreground surface. The app is
// pinged first; the restart command is only sent to a running process.
func (c *Client) RestartActivity(ctx context.Context) error {
	state, err := c.AppState(ctx)
	if err != nil {
		return fmt.Errorf("app not reachable: %w", err)
	}
	c.log.Debug().Stringer("state", state).Msg("app is running, requesting restart")

	return c.Invoke(ctx, func(r *protocol.Reader, w *protocol.Writer) error {
		if err := w.Int32(protocol.CmdRestartActivity); err != nil {
			return err
		}
		return w.Int64(c.token)
	})
}

// PathSize queries the size of an extracted resource file on the app
// side. Absent files report -1.
func (c *Client) PathSize(ctx context.Context, path string) (int64, error) {
	var size int64
	err := c.Invoke(ctx, func(r *protocol.Reader, w *protocol.Writer) error {
		if err := w.Int32(protocol.CmdPathExists); err != nil {
			return err
		}
		if err := w.String(path); err != nil {
			return err
		}
		var err error
		size, err = r.Int64()
		if err != nil {
			return fmt.Errorf("read size reply: %w", err)
		}
		return nil
	})
	return size, err
}

// PathChecksum queries the checksum of an extracted resource file on the
// app side. Absent files report nil.
func (c *Client) PathChecksum(ctx context.Context, path string) ([]byte, error) {
	var sum []byte
	err := c.Invoke(ctx, func(r *protocol.Reader, w *protocol.Writer) error {
		if err := w.Int32(protocol.CmdPathChecksum); err != nil {
			return err
		}
		if err := w.String(path); err != nil {
			return err
		}
		var err error
		sum, err = r.Bytes()
		if err != nil {
			return fmt.Errorf("read checksum reply: %w", err)
		}
		return nil
	})
	return sum, err
}

// PushBuildID records buildID on the device as the last deployed build.
// This runs over the device file channel, not the protocol socket, so it
// works whether or not the app is running.
func (c *Client) PushBuildID(buildID string) error {
	return buildid.Push(c.device, c.appID, buildID)
}

// DeviceBuildID reads the build identifier last deployed to the device,
// or "" when none was ever deployed.
func (c *Client) DeviceBuildID() (string, error) {
	return buildid.Pull(c.device, c.appID)
}
