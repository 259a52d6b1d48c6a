package server

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mj1618/tab-bridge/internal/platform"
	"github.com/mj1618/tab-bridge/internal/platform/memory"
	"github.com/mj1618/tab-bridge/internal/protocol"
)

// recordingManager counts and records every mutation reaching the host.
type recordingManager struct {
	platform.WindowManager

	mu    sync.Mutex
	calls []string
}

func (r *recordingManager) record(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordingManager) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingManager) SetTitlePreface(ctx context.Context, windowID int, preface string) error {
	r.record("preface %d %q", windowID, preface)
	return r.WindowManager.SetTitlePreface(ctx, windowID, preface)
}

func (r *recordingManager) FocusWindow(ctx context.Context, windowID int) error {
	r.record("focus %d", windowID)
	return r.WindowManager.FocusWindow(ctx, windowID)
}

func (r *recordingManager) ActivateTab(ctx context.Context, tabID int) error {
	r.record("activate %d", tabID)
	return r.WindowManager.ActivateTab(ctx, tabID)
}

// fixture is a memory host wired into a provider with a recording window
// manager and an identification cache.
type fixture struct {
	host     *memory.Host
	manager  *recordingManager
	provider *platform.Provider
	cache    *IdentifyCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := memory.New("Browser")
	provider := host.Provider()
	manager := &recordingManager{WindowManager: provider.WindowManager}
	provider.WindowManager = manager
	return &fixture{
		host:     host,
		manager:  manager,
		provider: provider,
		cache:    NewIdentifyCache(provider, nil, nil),
	}
}

func (f *fixture) title(t *testing.T, windowID int) string {
	t.Helper()
	w, err := f.host.GetWindow(context.Background(), windowID)
	if err != nil {
		t.Fatalf("GetWindow(%d): %v", windowID, err)
	}
	return w.Title
}

// request builds a JSON request as if decoded from the wire.
func request(t *testing.T, id any, command string, args any) *protocol.Request {
	t.Helper()
	req, err := protocol.NewRequest(protocol.JSON, id, command, args)
	if err != nil {
		t.Fatal(err)
	}
	return req
}
