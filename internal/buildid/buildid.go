// Package buildid moves the build-identifier file between the desktop
// and the device. The identifier is a small opaque fingerprint of the
// last deployed build; both sides read it to decide whether a deployment
// is redundant. Transfer happens over the device file channel, never the
// live protocol socket.
package buildid

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/applift/devlink/internal/transport"
)

const fileName = "build-id.txt"

// DevicePath returns the fixed on-device location of the identifier file
// for one app. Writers and readers must agree on it, so it is derived
// from nothing but the app identifier.
func DevicePath(appID string) string {
	return path.Join("apps", appID, fileName)
}

// Push writes buildID to the device for the given app, replacing any
// previous identifier.
func Push(device transport.Device, appID, buildID string) error {
	local, err := os.CreateTemp("", "build-id-*.txt")
	if err != nil {
		return fmt.Errorf("create build id file: %w", err)
	}
	defer os.Remove(local.Name()) //nolint:errcheck

	if _, err := local.WriteString(buildID); err != nil {
		local.Close() //nolint:errcheck
		return fmt.Errorf("write build id file: %w", err)
	}
	if err := local.Close(); err != nil {
		return fmt.Errorf("write build id file: %w", err)
	}

	if err := device.PushFile(local.Name(), DevicePath(appID)); err != nil {
		return fmt.Errorf("push build id: %w", err)
	}
	return nil
}

// Pull reads the identifier last deployed to the device for the given
// app. An absent file means no prior build and yields "", not an error.
func Pull(device transport.Device, appID string) (string, error) {
	local, err := os.CreateTemp("", "build-id-*.txt")
	if err != nil {
		return "", fmt.Errorf("create build id file: %w", err)
	}
	localPath := local.Name()
	local.Close()              //nolint:errcheck
	defer os.Remove(localPath) //nolint:errcheck

	if err := device.PullFile(DevicePath(appID), localPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("pull build id: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read build id file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
