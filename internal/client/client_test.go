package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applift/devlink/internal/agent"
	"github.com/applift/devlink/internal/host"
	"github.com/applift/devlink/internal/protocol"
	"github.com/applift/devlink/internal/resources"
	"github.com/applift/devlink/internal/transport"
)

const testToken int64 = 0x00c0ffee00c0ffee

// pipeDevice is a Device whose control service is a scripted handler on
// the far end of a pipe. File transfer is unsupported.
type pipeDevice struct {
	handler func(conn net.Conn)
}

func (d *pipeDevice) Serial() string { return "pipe-0" }

func (d *pipeDevice) DialService(ctx context.Context, service string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.handler(server)
	return client, nil
}

func (d *pipeDevice) PushFile(localPath, devicePath string) error { return os.ErrInvalid }
func (d *pipeDevice) PullFile(devicePath, localPath string) error { return os.ErrInvalid }

// skewedAgent answers the handshake with a different protocol version
// and closes, the way a real agent does on mismatch.
func skewedAgent(conn net.Conn) {
	defer conn.Close() //nolint:errcheck
	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)
	if _, err := r.Int64(); err != nil {
		return
	}
	if _, err := r.Int32(); err != nil {
		return
	}
	w.Int32(protocol.Version + 1) //nolint:errcheck
}

func TestStrictModeRefusesVersionSkew(t *testing.T) {
	c := New(&pipeDevice{handler: skewedAgent}, "com.example.app", testToken, WithStrictVersion())
	_, err := c.AppState(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDefaultModeProceedsOnVersionSkew(t *testing.T) {
	c := New(&pipeDevice{handler: skewedAgent}, "com.example.app", testToken)
	_, err := c.AppState(context.Background())
	// The skewed agent closed after the handshake, so the ping reply
	// never arrives. The failure is a stream error, not a version error.
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionMismatch)
}

func TestTransportFailureSurfacesToCaller(t *testing.T) {
	dev := transport.NewLocalDevice("local-0", t.TempDir(), t.TempDir())
	c := New(dev, "com.example.gone", testToken)

	_, err := c.AppState(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrNoService)

	// RestartActivity pings first and must not mask the failure.
	err = c.RestartActivity(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrNoService)
}

// startAgent runs a real agent on a unix socket and returns a device
// that reaches it.
func startAgent(t *testing.T, surfaces host.SurfaceProvider, res *resources.Manager) transport.Device {
	t.Helper()
	socketDir := t.TempDir()
	listener, err := transport.Listen(socketDir, "com.example.app")
	require.NoError(t, err)

	s := agent.New(listener, agent.Options{
		Token:     testToken,
		Surfaces:  surfaces,
		Resources: res,
		Logger:    zerolog.Nop(),
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve() //nolint:errcheck
	}()
	t.Cleanup(func() {
		s.Shutdown()
		<-done
	})
	return transport.NewLocalDevice("local-0", socketDir, t.TempDir())
}

func TestAppStateEndToEnd(t *testing.T) {
	surfaces := host.NewConsoleProvider(io.Discard)
	c := New(startAgent(t, surfaces, nil), "com.example.app", testToken)
	ctx := context.Background()

	state, err := c.AppState(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateForeground, state)

	surfaces.SetForeground(false)
	state, err = c.AppState(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBackground, state)
}

// syncBuffer is a bytes.Buffer safe to read while the agent goroutine
// writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestShowToastEndToEnd(t *testing.T) {
	var out syncBuffer
	surfaces := host.NewConsoleProvider(&out)
	c := New(startAgent(t, surfaces, nil), "com.example.app", testToken)

	require.NoError(t, c.ShowToast(context.Background(), "build 7 deployed"))

	// The toast travels on its own connection; wait for the agent to
	// drain it.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "build 7 deployed")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRestartActivityEndToEnd(t *testing.T) {
	surfaces := host.NewConsoleProvider(io.Discard)
	c := New(startAgent(t, surfaces, nil), "com.example.app", testToken)

	require.NoError(t, c.RestartActivity(context.Background()))

	require.Eventually(t, func() bool {
		return surfaces.Restarts() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPathQueriesEndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "resources.ap_"), []byte("123456"), 0o644))
	res := resources.NewManager(root, true)
	c := New(startAgent(t, host.NewConsoleProvider(io.Discard), res), "com.example.app", testToken)
	ctx := context.Background()

	size, err := c.PathSize(ctx, "resources.ap_")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	size, err = c.PathSize(ctx, "missing.ap_")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), size)

	sum, err := c.PathChecksum(ctx, "resources.ap_")
	require.NoError(t, err)
	assert.Equal(t, res.Checksum("resources.ap_"), sum)

	sum, err = c.PathChecksum(ctx, "missing.ap_")
	require.NoError(t, err)
	assert.Nil(t, sum, "absent file reads as nil checksum")
}

func TestBuildIDRoundTripViaClient(t *testing.T) {
	dev := transport.NewLocalDevice("local-0", t.TempDir(), t.TempDir())
	c := New(dev, "com.example.app", testToken)

	got, err := c.DeviceBuildID()
	require.NoError(t, err)
	assert.Equal(t, "", got, "no prior build reads as empty")

	require.NoError(t, c.PushBuildID("abc123"))
	got, err = c.DeviceBuildID()
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}
