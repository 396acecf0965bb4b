package host

import (
	"fmt"
	"io"
	"sync"
)

// ConsoleProvider is a SurfaceProvider for processes whose only "surface"
// is a terminal. The demo daemon uses it; tests use it as a scriptable
// stand-in for a real UI runtime.
type ConsoleProvider struct {
	mu         sync.Mutex
	out        io.Writer
	foreground bool
	restarts   int
}

type consoleSurface struct{}

func (consoleSurface) Name() string { return "console" }

// NewConsoleProvider returns a provider writing messages to out.
// The console starts in the foreground.
func NewConsoleProvider(out io.Writer) *ConsoleProvider {
	return &ConsoleProvider{out: out, foreground: true}
}

// SetForeground flips whether the console reports itself as foreground.
func (p *ConsoleProvider) SetForeground(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foreground = v
}

// Restarts reports how many times Restart has been invoked.
func (p *ConsoleProvider) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

func (p *ConsoleProvider) ForegroundSurface() (Surface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.foreground {
		return nil, false
	}
	return consoleSurface{}, true
}

func (p *ConsoleProvider) Restart(s Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	fmt.Fprintf(p.out, "[%s] restart requested\n", s.Name())
}

func (p *ConsoleProvider) ShowMessage(s Surface, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", s.Name(), text)
}
