// Command devlink is the desktop-side control tool: it pings, toasts,
// and restarts an app served by an embedded devlink agent, and manages
// the build identifier recorded on the device.
package main

import (
	"context"
	"os"

	"github.com/applift/devlink/internal/cli"
)

func main() {
	r := cli.NewRunner(os.Stdout, os.Stderr)
	os.Exit(r.Run(context.Background(), os.Args[1:]))
}
