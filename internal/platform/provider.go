package platform

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Provider bundles the backends of one host.
type Provider struct {
	Name          string
	Reader        Reader
	WindowManager WindowManager
	Events        EventSource

	// Close releases host resources (pollers, connections). May be nil.
	Close func() error
}

// Options configures provider construction.
type Options struct {
	PollInterval time.Duration // Event polling interval for hosts without push events
	Fixture      string        // Path to a YAML fixture (memory host)
	Logger       *slog.Logger  // Host diagnostics; nil discards
}

// Factory builds a provider for a named host.
type Factory func(opts Options) (*Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a host available by name. Host packages call it from
// init(); see internal/platform/tmux and internal/platform/memory.
// Panics on duplicate registration.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("platform: duplicate host %q", name))
	}
	factories[name] = factory
}

// Hosts returns the registered host names, sorted.
func Hosts() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider returns a Provider for the named host.
func NewProvider(name string, opts Options) (*Provider, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownHost, name, strings.Join(Hosts(), ", "))
	}
	p, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}

// Shutdown calls p.Close if set.
func (p *Provider) Shutdown() error {
	if p == nil || p.Close == nil {
		return nil
	}
	return p.Close()
}
