// Package agent implements the in-process control-channel server: it
// accepts connections from the desktop tool, validates the handshake,
// and executes one command at a time per connection against the hosting
// process. It lives inside the target app for the process lifetime.
package agent

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/applift/devlink/internal/host"
	"github.com/applift/devlink/internal/protocol"
	"github.com/applift/devlink/internal/resources"
)

// maxAuthFailures is the lifetime budget of rejected tokens. Once the
// count passes it the agent stops accepting connections permanently;
// there is no reset short of restarting the hosting process.
const maxAuthFailures = 50

// Options configures a Server.
type Options struct {
	// Token is the shared secret privileged commands must present.
	Token int64

	// Surfaces is the host-runtime capability used for ping, toast,
	// and activity restart.
	Surfaces host.SurfaceProvider

	// Resources answers path queries. Optional; when nil, or when its
	// extracted mode is off, path commands are refused.
	Resources *resources.Manager

	// Logger receives connection lifecycle and protocol events.
	Logger zerolog.Logger
}

// Server serves the control protocol on a listener. One goroutine runs
// the accept loop; each accepted connection gets its own goroutine with
// a strictly sequential handshake and command loop.
type Server struct {
	token    int64
	surfaces host.SurfaceProvider
	res      *resources.Manager
	log      zerolog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once

	// authFailures is shared by all connection goroutines.
	authFailures atomic.Int64
}

// New returns a Server that will serve connections from listener.
func New(listener net.Listener, opts Options) *Server {
	return &Server{
		token:    opts.Token,
		surfaces: opts.Surfaces,
		res:      opts.Resources,
		log:      opts.Logger,
		listener: listener,
	}
}

// Serve runs the accept loop until the listener is shut down, then waits
// for in-flight connections to finish. It is the caller's goroutine; the
// agent never returns from it while healthy.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)

			// The failure budget is evaluated once per completed
			// connection. Shutdown is idempotent, so concurrent
			// connections crossing the line together race harmlessly.
			if s.authFailures.Load() > maxAuthFailures {
				s.log.Error().
					Int64("failures", s.authFailures.Load()).
					Msg("too many rejected tokens, refusing further connections")
				s.Shutdown()
			}
		}()
	}
	s.wg.Wait()
	return nil
}

// Shutdown closes the listener. In-flight connections run to completion;
// Serve returns once they have.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.listener.Close() //nolint:errcheck
	})
}

// AuthFailures reports the lifetime count of rejected tokens.
func (s *Server) AuthFailures() int64 {
	return s.authFailures.Load()
}

// serveConn runs the handshake and command loop for one connection.
// Every exit path closes the stream.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	log := s.log.With().Str("conn", uuid.NewString()[:8]).Logger()
	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)

	magic, err := r.Int64()
	if err != nil {
		log.Debug().Err(err).Msg("connection closed before header")
		return
	}
	if magic != protocol.Magic {
		// Not our protocol. Drop without replying so stray connections
		// in the socket namespace learn nothing.
		log.Warn().Int64("magic", magic).Msg("unrecognized header, dropping connection")
		return
	}

	clientVersion, err := r.Int32()
	if err != nil {
		log.Warn().Err(err).Msg("connection closed mid-handshake")
		return
	}

	// Reply with our version even on mismatch so the client can detect
	// skew and decide what to do about it.
	if err := w.Int32(protocol.Version); err != nil {
		log.Warn().Err(err).Msg("failed to send version")
		return
	}
	if clientVersion != protocol.Version {
		log.Warn().
			Int32("client_version", clientVersion).
			Int32("agent_version", protocol.Version).
			Msg("protocol version mismatch, closing")
		return
	}

	log.Debug().Msg("connection established")
	s.commandLoop(log, r, w)
}

// commandLoop reads and executes commands until EOF, a framing error, or
// an authentication failure.
func (s *Server) commandLoop(log zerolog.Logger, r *protocol.Reader, w *protocol.Writer) {
	for {
		code, err := r.Int32()
		if err != nil {
			if err == io.EOF {
				log.Debug().Msg("peer closed connection")
			} else {
				log.Warn().Err(err).Msg("failed to read command")
			}
			return
		}

		switch code {
		case protocol.CmdEOF:
			log.Debug().Msg("received eof")
			return

		case protocol.CmdPing:
			_, foreground := s.surfaces.ForegroundSurface()
			if err := w.Bool(foreground); err != nil {
				log.Warn().Err(err).Msg("failed to answer ping")
				return
			}
			log.Debug().Bool("foreground", foreground).Msg("answered ping")

		case protocol.CmdPathExists:
			if !s.extractedMode() {
				// Refusing leaves the unread payload on the stream; the
				// conversation is over even though we keep reading.
				log.Error().Str("command", protocol.CommandName(code)).Msg("path query refused, extracted-resources mode is off")
				continue
			}
			path, err := r.String()
			if err != nil {
				log.Warn().Err(err).Msg("failed to read path")
				return
			}
			size := s.res.FileSize(path)
			if err := w.Int64(size); err != nil {
				log.Warn().Err(err).Msg("failed to answer path query")
				return
			}
			log.Debug().Str("path", path).Int64("size", size).Msg("answered path query")

		case protocol.CmdPathChecksum:
			if !s.extractedMode() {
				log.Error().Str("command", protocol.CommandName(code)).Msg("path query refused, extracted-resources mode is off")
				continue
			}
			path, err := r.String()
			if err != nil {
				log.Warn().Err(err).Msg("failed to read path")
				return
			}
			sum := s.res.Checksum(path)
			if err := w.Bytes(sum); err != nil {
				log.Warn().Err(err).Msg("failed to answer checksum query")
				return
			}
			log.Debug().Str("path", path).Int("len", len(sum)).Msg("answered checksum query")

		case protocol.CmdRestartActivity:
			ok, err := s.authenticate(log, r)
			if err != nil {
				log.Warn().Err(err).Msg("failed to read token")
				return
			}
			if !ok {
				return
			}
			if surface, found := s.surfaces.ForegroundSurface(); found {
				log.Info().Str("surface", surface.Name()).Msg("restarting foreground surface")
				s.surfaces.Restart(surface)
			} else {
				log.Debug().Msg("restart requested with no foreground surface")
			}

		case protocol.CmdShowToast:
			text, err := r.String()
			if err != nil {
				log.Warn().Err(err).Msg("failed to read toast text")
				return
			}
			if surface, found := s.surfaces.ForegroundSurface(); found {
				s.surfaces.ShowMessage(surface, text)
			} else {
				log.Debug().Str("text", text).Msg("dropped toast, no foreground surface")
			}

		default:
			// An unknown command's payload length is unknowable, so the
			// stream cannot be skipped past it safely.
			log.Error().Int32("command", code).Msg("unexpected command, closing connection")
			return
		}
	}
}

func (s *Server) extractedMode() bool {
	return s.res != nil && s.res.ExtractedMode()
}

// authenticate reads one token and compares it against the shared secret.
// A mismatch counts toward the lifetime failure budget.
func (s *Server) authenticate(log zerolog.Logger, r *protocol.Reader) (bool, error) {
	token, err := r.Int64()
	if err != nil {
		return false, err
	}
	if token != s.token {
		n := s.authFailures.Add(1)
		log.Warn().Int64("failures", n).Msg("rejected command token")
		return false, nil
	}
	return true, nil
}
