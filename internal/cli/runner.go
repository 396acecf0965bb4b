// Package cli implements the devlink command-line tool: one subcommand
// per control-channel operation, plus the out-of-band build-id transfer
// and the local deployment history.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/applift/devlink/internal/client"
	"github.com/applift/devlink/internal/config"
	"github.com/applift/devlink/internal/logging"
	"github.com/applift/devlink/internal/security"
	"github.com/applift/devlink/internal/store"
	"github.com/applift/devlink/internal/transport"
	"github.com/applift/devlink/internal/version"
)

// Runner executes CLI subcommands. Output streams are injected so tests
// can capture them.
type Runner struct {
	out    io.Writer
	errOut io.Writer

	// newStore is swappable in tests; the default opens SQLite.
	newStore func(path string) (store.Store, error)
}

// NewRunner returns a Runner writing to the given streams.
func NewRunner(out, errOut io.Writer) *Runner {
	return &Runner{
		out:    out,
		errOut: errOut,
		newStore: func(path string) (store.Store, error) {
			return store.NewSQLiteStore(path)
		},
	}
}

// Run parses args and executes one subcommand, returning a process exit
// code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	global := flag.NewFlagSet("devlink", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "config file path")
	appID := global.String("app", "", "target app identifier")
	tokenArg := global.String("token", "", "auth token (0x-hex or decimal)")
	strict := global.Bool("strict", false, "refuse to proceed on protocol version mismatch")
	if err := global.Parse(args); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		r.printUsage()
		return 2
	}
	if rest[0] == "version" {
		fmt.Fprintf(r.out, "devlink %s (built %s)\n", version.Version, version.BuildTime)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if *appID != "" {
		cfg.AppID = *appID
	}
	if *tokenArg != "" {
		cfg.Token = *tokenArg
	}
	if *strict {
		cfg.StrictVersion = true
	}
	if cfg.AppID == "" {
		fmt.Fprintln(r.errOut, "error: no app identifier (use -app or set app_id)")
		return 2
	}

	token := int64(0)
	if cfg.Token != "" {
		token, err = security.ParseToken(cfg.Token)
		if err != nil {
			fmt.Fprintf(r.errOut, "error: %v\n", err)
			return 2
		}
	}

	device := transport.NewLocalDevice(cfg.DeviceSerial, cfg.SocketDir, cfg.DeviceRoot)
	opts := []client.Option{client.WithLogger(logging.New("client", cfg.LogLevel))}
	if cfg.StrictVersion {
		opts = append(opts, client.WithStrictVersion())
	}
	c := client.New(device, cfg.AppID, token, opts...)

	switch rest[0] {
	case "ping":
		return r.runPing(ctx, c)
	case "toast":
		return r.runToast(ctx, c, rest[1:])
	case "restart":
		return r.runRestart(ctx, c)
	case "path-size":
		return r.runPathSize(ctx, c, rest[1:])
	case "checksum":
		return r.runChecksum(ctx, c, rest[1:])
	case "push-build-id":
		return r.runPushBuildID(ctx, c, cfg, rest[1:])
	case "build-id":
		return r.runBuildID(c)
	case "history":
		return r.runHistory(ctx, cfg)
	default:
		fmt.Fprintf(r.errOut, "unknown command: %s\n", rest[0])
		r.printUsage()
		return 2
	}
}

func (r *Runner) runPing(ctx context.Context, c *client.Client) int {
	state, err := c.AppState(ctx)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.out, state)
	return 0
}

func (r *Runner) runToast(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: devlink toast <message>")
		return 2
	}
	if err := c.ShowToast(ctx, args[0]); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r *Runner) runRestart(ctx context.Context, c *client.Client) int {
	if err := c.RestartActivity(ctx); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.out, "restart requested")
	return 0
}

func (r *Runner) runPathSize(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: devlink path-size <path>")
		return 2
	}
	size, err := c.PathSize(ctx, args[0])
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	if size < 0 {
		fmt.Fprintln(r.out, "absent")
		return 1
	}
	fmt.Fprintln(r.out, size)
	return 0
}

func (r *Runner) runChecksum(ctx context.Context, c *client.Client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: devlink checksum <path>")
		return 2
	}
	sum, err := c.PathChecksum(ctx, args[0])
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	if len(sum) == 0 {
		fmt.Fprintln(r.out, "absent")
		return 1
	}
	fmt.Fprintf(r.out, "%x\n", sum)
	return 0
}

// runPushBuildID transfers the build id to the device and records the
// deployment. A device already carrying the same id is reported as
// up-to-date and nothing is pushed.
func (r *Runner) runPushBuildID(ctx context.Context, c *client.Client, cfg config.Config, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: devlink push-build-id <build-id>")
		return 2
	}
	buildID := args[0]

	current, err := c.DeviceBuildID()
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	if current == buildID {
		fmt.Fprintln(r.out, "up-to-date")
		return 0
	}

	if err := c.PushBuildID(buildID); err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}

	db, err := r.newStore(cfg.HistoryDB)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	defer db.Close() //nolint:errcheck
	err = db.RecordDeployment(ctx, &store.Deployment{
		ID:           uuid.NewString(),
		AppID:        cfg.AppID,
		BuildID:      buildID,
		DeviceSerial: cfg.DeviceSerial,
		DeployedAt:   time.Now(),
	})
	if err != nil {
		fmt.Fprintf(r.errOut, "error: record deployment: %v\n", err)
		return 1
	}

	fmt.Fprintln(r.out, "pushed")
	return 0
}

func (r *Runner) runBuildID(c *client.Client) int {
	id, err := c.DeviceBuildID()
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	if id == "" {
		fmt.Fprintln(r.out, "absent")
		return 1
	}
	fmt.Fprintln(r.out, id)
	return 0
}

func (r *Runner) runHistory(ctx context.Context, cfg config.Config) int {
	db, err := r.newStore(cfg.HistoryDB)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	defer db.Close() //nolint:errcheck

	deployments, err := db.ListDeployments(ctx, cfg.AppID)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	if len(deployments) == 0 {
		fmt.Fprintln(r.out, "no deployments")
		return 0
	}
	for _, d := range deployments {
		fmt.Fprintf(r.out, "%s\t%s\t%s\n",
			d.DeployedAt.Local().Format(time.RFC3339), d.DeviceSerial, d.BuildID)
	}
	return 0
}

func (r *Runner) printUsage() {
	fmt.Fprintln(r.errOut, `usage: devlink [-config file] [-app id] [-token t] [-strict] <command>

commands:
  ping                  report whether the app is foreground or background
  toast <message>       show a message on the app's foreground surface
  restart               restart the app's foreground activity
  path-size <path>      size of an extracted resource file on the app side
  checksum <path>       checksum of an extracted resource file
  push-build-id <id>    record <id> on the device as the last deployed build
  build-id              read the build id last deployed to the device
  history               list recorded deployments for the app
  version               print the tool version`)
}
