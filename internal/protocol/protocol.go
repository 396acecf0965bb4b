// Package protocol defines the wire format shared by the desktop client
// and the embedded agent: the connection handshake constants, the command
// codes, and the primitive codec both sides frame messages with.
package protocol

// Magic is the 64-bit constant every client sends first. The agent drops
// any connection that opens with anything else, which keeps stray
// connections in the same socket namespace from being misread as commands.
const Magic int64 = 0x44564c4b3a435452 // "DVLK:CTR"

// Version is the protocol version spoken by this build. The agent always
// replies with its own version during the handshake, even on mismatch, so
// a newer client can detect skew.
const Version int32 = 1

// Command codes, sent as an int32 at the start of each command.
const (
	// CmdEOF ends the conversation. No payload, no response.
	CmdEOF int32 = 0

	// CmdPing asks whether the app is running. Response: one bool that is
	// true when the app has a foreground surface.
	CmdPing int32 = 1

	// CmdPathExists queries the size of an extracted resource file.
	// Payload: string path. Response: int64 size, -1 when absent.
	CmdPathExists int32 = 2

	// CmdPathChecksum queries the checksum of an extracted resource file.
	// Payload: string path. Response: length-prefixed bytes, empty when
	// the file is absent.
	CmdPathChecksum int32 = 3

	// CmdRestartActivity restarts the foreground surface. Payload: int64
	// auth token. No response; on a bad token the agent closes the
	// connection.
	CmdRestartActivity int32 = 4

	// CmdShowToast displays a message on the foreground surface.
	// Payload: string message. No response.
	CmdShowToast int32 = 5
)

// CommandName returns a readable name for a command code, for logging.
func CommandName(code int32) string {
	switch code {
	case CmdEOF:
		return "eof"
	case CmdPing:
		return "ping"
	case CmdPathExists:
		return "path-exists"
	case CmdPathChecksum:
		return "path-checksum"
	case CmdRestartActivity:
		return "restart-activity"
	case CmdShowToast:
		return "show-toast"
	default:
		return "unknown"
	}
}
