package platform

import (
	"context"

	"github.com/mj1618/tab-bridge/internal/model"
)

// Reader queries windows and tabs from the host.
type Reader interface {
	// ListWindows returns all windows.
	ListWindows(ctx context.Context) ([]model.Window, error)

	// ListTabs returns all tabs across all windows.
	ListTabs(ctx context.Context) ([]model.Tab, error)

	// GetWindow returns a single window. Returns ErrNotFound if it does not exist.
	GetWindow(ctx context.Context, windowID int) (model.Window, error)

	// GetFocusedWindow returns the most recently focused window.
	GetFocusedWindow(ctx context.Context) (model.Window, error)

	// ActiveTab returns the active tab of a window. Returns ErrNotFound if
	// the window is gone or has no active tab.
	ActiveTab(ctx context.Context, windowID int) (model.Tab, error)
}

// WindowManager mutates window and tab state.
type WindowManager interface {
	SetTitlePreface(ctx context.Context, windowID int, preface string) error
	FocusWindow(ctx context.Context, windowID int) error
	ActivateTab(ctx context.Context, tabID int) error
}

// EventSource delivers host window lifecycle events. Listeners stay
// registered until ctx is done. Callbacks may run on any goroutine and
// must not block.
type EventSource interface {
	OnWindowCreated(ctx context.Context, fn func(model.Window)) error
	OnWindowRemoved(ctx context.Context, fn func(windowID int)) error
}
