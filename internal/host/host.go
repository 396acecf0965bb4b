// Package host abstracts the hosting process's UI runtime. The protocol
// core only ever asks three things of the host: which surface is in the
// foreground, restart a surface, and show a message on a surface. Concrete
// UI toolkits stay behind SurfaceProvider.
package host

// Surface is a handle to one UI surface owned by the hosting process.
type Surface interface {
	// Name identifies the surface in logs.
	Name() string
}

// SurfaceProvider is the host-runtime capability the agent drives.
// Implementations must be safe for concurrent use: the agent may serve
// several connections at once.
type SurfaceProvider interface {
	// ForegroundSurface returns the surface currently in the foreground,
	// or false when the process has none.
	ForegroundSurface() (Surface, bool)

	// Restart tears down and relaunches the given surface.
	Restart(s Surface)

	// ShowMessage displays a transient message on the given surface.
	ShowMessage(s Surface, text string)
}
