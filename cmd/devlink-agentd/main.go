// Command devlink-agentd runs the control-channel agent as a standalone
// process with a console surface. Real deployments embed the agent in
// the target app; this daemon exists to exercise the whole stack against
// the devlink CLI.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/applift/devlink/internal/agent"
	"github.com/applift/devlink/internal/config"
	"github.com/applift/devlink/internal/host"
	"github.com/applift/devlink/internal/logging"
	"github.com/applift/devlink/internal/resources"
	"github.com/applift/devlink/internal/security"
	"github.com/applift/devlink/internal/transport"
	"github.com/applift/devlink/internal/version"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	appID := flag.String("app", "com.example.app", "app identifier to serve")
	tokenArg := flag.String("token", "", "auth token (generated when empty)")
	resourceDir := flag.String("resources", "", "extracted resources directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n") //nolint:errcheck
		os.Exit(2)
	}
	log := logging.New("agentd", cfg.LogLevel)
	log.Info().Str("version", version.Version).Str("built", version.BuildTime).Msg("starting agent")

	token := int64(0)
	switch {
	case *tokenArg != "":
		token, err = security.ParseToken(*tokenArg)
	case cfg.Token != "":
		token, err = security.ParseToken(cfg.Token)
	default:
		token, err = security.GenerateToken()
		if err == nil {
			log.Info().Str("token", security.FormatToken(token)).Msg("generated auth token")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("bad token")
	}

	var res *resources.Manager
	if *resourceDir != "" {
		res = resources.NewManager(*resourceDir, true)
		log.Info().Str("dir", *resourceDir).Msg("serving extracted resources")
	}

	listener, err := transport.Listen(cfg.SocketDir, *appID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open control socket")
	}
	log.Info().Str("app", *appID).Str("socket_dir", cfg.SocketDir).Msg("listening")

	s := agent.New(listener, agent.Options{
		Token:     token,
		Surfaces:  host.NewConsoleProvider(os.Stdout),
		Resources: res,
		Logger:    logging.New("agent", cfg.LogLevel),
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info().Msg("shutting down")
		s.Shutdown()
	}()

	if err := s.Serve(); err != nil {
		log.Fatal().Err(err).Msg("agent failed")
	}
}
