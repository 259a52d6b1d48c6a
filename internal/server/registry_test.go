package server

import (
	"context"
	"slices"
	"testing"

	"github.com/mj1618/tab-bridge/internal/protocol"
)

func nopCommand(context.Context, *protocol.Request) (any, error) { return nil, nil }

func nopSubscription(context.Context, *protocol.Request, Push) error { return nil }

func TestRegistryRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		first  func(*Registry)
		second func(*Registry)
	}{
		{
			name:   "command twice",
			first:  func(r *Registry) { r.HandleCommand("x", nopCommand) },
			second: func(r *Registry) { r.HandleCommand("x", nopCommand) },
		},
		{
			name:   "subscription twice",
			first:  func(r *Registry) { r.HandleSubscription("x", nopSubscription) },
			second: func(r *Registry) { r.HandleSubscription("x", nopSubscription) },
		},
		{
			name:   "command then subscription",
			first:  func(r *Registry) { r.HandleCommand("x", nopCommand) },
			second: func(r *Registry) { r.HandleSubscription("x", nopSubscription) },
		},
		{
			name:   "subscription then command",
			first:  func(r *Registry) { r.HandleSubscription("x", nopSubscription) },
			second: func(r *Registry) { r.HandleCommand("x", nopCommand) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.first(r)
			defer func() {
				if recover() == nil {
					t.Error("expected panic on duplicate registration")
				}
			}()
			tt.second(r)
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.HandleCommand("b", nopCommand)
	r.HandleCommand("a", nopCommand)
	r.HandleSubscription("s", nopSubscription)

	if got := r.Commands(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Commands() = %v", got)
	}
	if got := r.Subscriptions(); !slices.Equal(got, []string{"s"}) {
		t.Errorf("Subscriptions() = %v", got)
	}
	if _, ok := r.Command("s"); ok {
		t.Error("subscription found as command")
	}
	if _, ok := r.Subscription("a"); ok {
		t.Error("command found as subscription")
	}
}

func TestRegisterBridgeNames(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	RegisterBridge(r, f.provider, f.cache)

	wantCommands := []string{CmdFocusTab, CmdGetFocusedWindow, CmdGetTabs, CmdGetWindows, CmdIdentifyWindow}
	if got := r.Commands(); !slices.Equal(got, wantCommands) {
		t.Errorf("Commands() = %v, want %v", got, wantCommands)
	}
	wantSubs := []string{SubCloseWindow, SubNewWindow}
	if got := r.Subscriptions(); !slices.Equal(got, wantSubs) {
		t.Errorf("Subscriptions() = %v, want %v", got, wantSubs)
	}
}
