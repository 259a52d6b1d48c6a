package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/mj1618/tab-bridge/internal/protocol"
)

// CommandFunc handles one command request. The returned value becomes the
// results of the single response; an error becomes an error payload.
type CommandFunc func(ctx context.Context, req *protocol.Request) (any, error)

// Push sends one update to a subscriber.
type Push func(results any)

// SubscriptionFunc registers a subscriber. It must return promptly after
// wiring its listeners; push may be called any number of times until ctx
// is done.
type SubscriptionFunc func(ctx context.Context, req *protocol.Request, push Push) error

// Registry maps names to command and subscription handlers. It is built
// before serving and must not change afterwards.
type Registry struct {
	commands      map[string]CommandFunc
	subscriptions map[string]SubscriptionFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:      make(map[string]CommandFunc),
		subscriptions: make(map[string]SubscriptionFunc),
	}
}

// HandleCommand registers a command. Panics if name is already registered
// as a command or a subscription.
func (r *Registry) HandleCommand(name string, fn CommandFunc) {
	r.checkFree(name)
	r.commands[name] = fn
}

// HandleSubscription registers a subscription. Panics if name is already
// registered as a command or a subscription.
func (r *Registry) HandleSubscription(name string, fn SubscriptionFunc) {
	r.checkFree(name)
	r.subscriptions[name] = fn
}

func (r *Registry) checkFree(name string) {
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("server.Registry: duplicate handler for %q (already a command)", name))
	}
	if _, exists := r.subscriptions[name]; exists {
		panic(fmt.Sprintf("server.Registry: duplicate handler for %q (already a subscription)", name))
	}
}

// Command returns the command registered under name.
func (r *Registry) Command(name string) (CommandFunc, bool) {
	fn, ok := r.commands[name]
	return fn, ok
}

// Subscription returns the subscription registered under name.
func (r *Registry) Subscription(name string) (SubscriptionFunc, bool) {
	fn, ok := r.subscriptions[name]
	return fn, ok
}

// Commands returns the registered command names, sorted.
func (r *Registry) Commands() []string {
	return sortedKeys(r.commands)
}

// Subscriptions returns the registered subscription names, sorted.
func (r *Registry) Subscriptions() []string {
	return sortedKeys(r.subscriptions)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
