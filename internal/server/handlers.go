package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/platform"
	"github.com/mj1618/tab-bridge/internal/protocol"
)

// Command and subscription names.
const (
	CmdGetWindows       = "get_windows"
	CmdGetTabs          = "get_tabs"
	CmdGetFocusedWindow = "get_focused_window"
	CmdFocusTab         = "focus_tab"
	CmdIdentifyWindow   = "identify_window"
	SubNewWindow        = "subscribe_new_window"
	SubCloseWindow      = "subscribe_close_window"
)

// FocusTabArgs are the arguments of focus_tab.
type FocusTabArgs struct {
	Tab *TabRef `json:"tab"`
}

// TabRef names a tab and the window holding it.
type TabRef struct {
	ID       int `json:"id"`
	WindowID int `json:"windowId"`
}

// IdentifyWindowArgs are the arguments of identify_window.
type IdentifyWindowArgs struct {
	WindowID *int  `json:"windowId"`
	On       *bool `json:"on"`
}

// OKResult is the results payload of commands with no other output.
type OKResult struct {
	OK bool `json:"ok" yaml:"ok"`
}

// bridge holds the handler dependencies.
type bridge struct {
	provider *platform.Provider
	cache    *IdentifyCache
}

// RegisterBridge registers the window and tab commands and subscriptions.
func RegisterBridge(reg *Registry, provider *platform.Provider, cache *IdentifyCache) {
	b := &bridge{provider: provider, cache: cache}

	reg.HandleCommand(CmdGetWindows, b.getWindows)
	reg.HandleCommand(CmdGetTabs, b.getTabs)
	reg.HandleCommand(CmdGetFocusedWindow, b.getFocusedWindow)
	reg.HandleCommand(CmdFocusTab, b.focusTab)
	reg.HandleCommand(CmdIdentifyWindow, b.identifyWindow)
	reg.HandleSubscription(SubNewWindow, b.subscribeNewWindow)
	reg.HandleSubscription(SubCloseWindow, b.subscribeCloseWindow)
}

func bindArgs(req *protocol.Request, v any) error {
	if err := req.Bind(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgs, req.Command, err)
	}
	return nil
}

func (b *bridge) getWindows(ctx context.Context, _ *protocol.Request) (any, error) {
	windows, err := b.provider.Reader.ListWindows(ctx)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []model.Window{}
	}
	return windows, nil
}

func (b *bridge) getTabs(ctx context.Context, _ *protocol.Request) (any, error) {
	tabs, err := b.provider.Reader.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	if tabs == nil {
		tabs = []model.Tab{}
	}
	return tabs, nil
}

func (b *bridge) getFocusedWindow(ctx context.Context, _ *protocol.Request) (any, error) {
	w, err := b.provider.Reader.GetFocusedWindow(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return w, nil
}

func (b *bridge) focusTab(ctx context.Context, req *protocol.Request) (any, error) {
	var args FocusTabArgs
	if err := bindArgs(req, &args); err != nil {
		return nil, err
	}
	if args.Tab == nil {
		return nil, fmt.Errorf("%w: %s requires tab", ErrInvalidArgs, req.Command)
	}

	wm := b.provider.WindowManager
	if err := wm.FocusWindow(ctx, args.Tab.WindowID); err != nil {
		return nil, unavailable(err)
	}
	if err := wm.ActivateTab(ctx, args.Tab.ID); err != nil {
		return nil, unavailable(err)
	}
	return OKResult{OK: true}, nil
}

func (b *bridge) identifyWindow(ctx context.Context, req *protocol.Request) (any, error) {
	var args IdentifyWindowArgs
	if err := bindArgs(req, &args); err != nil {
		return nil, err
	}
	if args.WindowID == nil || args.On == nil {
		return nil, fmt.Errorf("%w: %s requires windowId and on", ErrInvalidArgs, req.Command)
	}
	return b.cache.Identify(ctx, *args.WindowID, *args.On)
}

var errNoEvents = errors.New("host does not report window events")

func (b *bridge) subscribeNewWindow(ctx context.Context, _ *protocol.Request, push Push) error {
	if b.provider.Events == nil {
		return errNoEvents
	}
	return b.provider.Events.OnWindowCreated(ctx, func(w model.Window) {
		push(w)
	})
}

func (b *bridge) subscribeCloseWindow(ctx context.Context, _ *protocol.Request, push Push) error {
	if b.provider.Events == nil {
		return errNoEvents
	}
	return b.provider.Events.OnWindowRemoved(ctx, func(windowID int) {
		push(model.WindowRef{ID: windowID})
	})
}
