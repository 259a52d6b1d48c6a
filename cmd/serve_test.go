package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mj1618/tab-bridge/internal/config"
	"github.com/mj1618/tab-bridge/internal/logging"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/mj1618/tab-bridge/internal/platform"
	"github.com/mj1618/tab-bridge/internal/protocol"
)

const testFixture = `app: Browser
windows:
  - focused: true
    tabs:
      - {title: Inbox, url: "https://mail.example.com", active: true}
      - {title: Docs, url: "https://go.dev/doc"}
`

// newTestBridge builds a memory-host bridge loaded with testFixture.
func newTestBridge(t *testing.T) *bridge {
	t.Helper()
	path := filepath.Join(t.TempDir(), "windows.yaml")
	if err := os.WriteFile(path, []byte(testFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b, err := newBridge(ctx, config.Config{
		Host:    "memory",
		Fixture: path,
		Tmux:    config.TmuxConfig{PollInterval: time.Second},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("newBridge: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestNewBridgeUnknownHost(t *testing.T) {
	_, err := newBridge(context.Background(), config.Config{Host: "wayland"}, logging.Discard())
	if !errors.Is(err, platform.ErrUnknownHost) {
		t.Errorf("err = %v, want ErrUnknownHost", err)
	}
}

func TestServeSocket(t *testing.T) {
	b := newTestBridge(t)
	socket := filepath.Join(t.TempDir(), "bridge.sock")

	// A stale file at the socket path is replaced.
	if err := os.WriteFile(socket, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveSocket(ctx, b, socket, protocol.JSON) }()

	var client *peer.Client
	deadline := time.Now().Add(2 * time.Second)
	for {
		var err error
		client, err = peer.Dial(context.Background(), socket, protocol.JSON, nil)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	tabs, err := client.Tabs(callCtx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tabs) != 2 || tabs[0].Title != "Inbox" {
		t.Errorf("tabs = %+v", tabs)
	}
	client.Close()

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("serveSocket = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serveSocket did not stop")
	}
	if _, err := os.Stat(socket); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket not removed: %v", err)
	}
}
