package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applift/devlink/internal/agent"
	"github.com/applift/devlink/internal/host"
	"github.com/applift/devlink/internal/security"
	"github.com/applift/devlink/internal/transport"
)

const testToken int64 = 0x5151

// testEnv points the runner at a temp socket namespace, device root, and
// history database via environment overrides.
func testEnv(t *testing.T) (socketDir string) {
	t.Helper()
	socketDir = t.TempDir()
	t.Setenv("DEVLINK_SOCKET_DIR", socketDir)
	t.Setenv("DEVLINK_DEVICE_ROOT", t.TempDir())
	t.Setenv("DEVLINK_HISTORY_DB", filepath.Join(t.TempDir(), "history.db"))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return socketDir
}

func startAgent(t *testing.T, socketDir string) {
	t.Helper()
	listener, err := transport.Listen(socketDir, "com.example.app")
	require.NoError(t, err)
	s := agent.New(listener, agent.Options{
		Token:    testToken,
		Surfaces: host.NewConsoleProvider(io.Discard),
		Logger:   zerolog.Nop(),
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
}

func run(t *testing.T, args ...string) (code int, out, errOut string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	r := NewRunner(&stdout, &stderr)
	code = r.Run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func TestUsageWithoutCommand(t *testing.T) {
	testEnv(t)
	code, _, errOut := run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage:")
}

func TestUnknownCommand(t *testing.T) {
	testEnv(t)
	code, _, errOut := run(t, "-app", "com.example.app", "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestMissingAppID(t *testing.T) {
	testEnv(t)
	code, _, errOut := run(t, "ping")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "no app identifier")
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "devlink")
}

func TestPingAgainstLiveAgent(t *testing.T) {
	socketDir := testEnv(t)
	startAgent(t, socketDir)

	code, out, _ := run(t, "-app", "com.example.app", "ping")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "foreground")
}

func TestPingWithoutAgent(t *testing.T) {
	testEnv(t)
	code, _, errOut := run(t, "-app", "com.example.app", "ping")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}

func TestRestartWithToken(t *testing.T) {
	socketDir := testEnv(t)
	startAgent(t, socketDir)

	code, out, _ := run(t,
		"-app", "com.example.app",
		"-token", security.FormatToken(testToken),
		"restart")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "restart requested")
}

func TestBadTokenFlag(t *testing.T) {
	testEnv(t)
	code, _, errOut := run(t, "-app", "com.example.app", "-token", "garbage", "ping")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "parse token")
}

func TestPushBuildIDAndHistory(t *testing.T) {
	testEnv(t)

	code, out, _ := run(t, "-app", "com.example.app", "push-build-id", "build-41")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "pushed")

	// Pushing the same id again is redundant.
	code, out, _ = run(t, "-app", "com.example.app", "push-build-id", "build-41")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "up-to-date")

	code, out, _ = run(t, "-app", "com.example.app", "build-id")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "build-41")

	code, out, _ = run(t, "-app", "com.example.app", "history")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "build-41")
	assert.Contains(t, out, "local-0")
}

func TestBuildIDAbsent(t *testing.T) {
	testEnv(t)
	code, out, _ := run(t, "-app", "com.example.app", "build-id")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "absent")
}
