package server

import (
	"context"
	"io"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/platform/memory"
	"github.com/mj1618/tab-bridge/internal/protocol"
)

// bridgeClient talks to a Dispatcher serving the bridge over a pipe pair.
type bridgeClient struct {
	conn    *protocol.Conn
	replies chan *protocol.Reply
	close   func()
}

func startBridge(t *testing.T, f *fixture) *bridgeClient {
	t.Helper()
	reg := NewRegistry()
	RegisterBridge(reg, f.provider, f.cache)
	d := NewDispatcher(reg)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	server := protocol.NewConn(inR, outW, protocol.JSON)
	client := protocol.NewConn(outR, inW, protocol.JSON)

	done := make(chan error, 1)
	go func() {
		done <- d.Serve(context.Background(), server)
		outW.Close()
	}()

	c := &bridgeClient{conn: client, replies: make(chan *protocol.Reply, 16)}
	go func() {
		defer close(c.replies)
		for {
			reply, err := client.ReceiveReply()
			if err != nil {
				return
			}
			c.replies <- reply
		}
	}()
	var once sync.Once
	c.close = func() {
		once.Do(func() {
			inW.Close()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Serve = %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Error("Serve did not return")
			}
		})
	}
	t.Cleanup(c.close)
	return c
}

func (c *bridgeClient) send(t *testing.T, id any, command string, args any) {
	t.Helper()
	req, err := protocol.NewRequest(protocol.JSON, id, command, args)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.conn.SendRequest(req); err != nil {
		t.Fatal(err)
	}
}

func (c *bridgeClient) next(t *testing.T) *protocol.Reply {
	t.Helper()
	select {
	case reply, ok := <-c.replies:
		if !ok {
			t.Fatal("channel closed")
		}
		return reply
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return nil
	}
}

// call sends a command and decodes its results into out.
func (c *bridgeClient) call(t *testing.T, id any, command string, args any, out any) *protocol.Reply {
	t.Helper()
	c.send(t, id, command, args)
	reply := c.next(t)
	if reply.Type != protocol.TypeResults {
		t.Fatalf("%s: reply type %q", command, reply.Type)
	}
	if out != nil {
		if err := c.conn.DecodeResults(reply.Results, out); err != nil {
			t.Fatalf("%s: decode results: %v", command, err)
		}
	}
	return reply
}

func TestBridgeScenarioC(t *testing.T) {
	f := newFixture(t)
	// Windows 1-6 have no tabs; window 7 holds tabs 1, 2 and 3.
	for range 6 {
		f.host.OpenWindow(memory.WindowSpec{Title: "filler"})
	}
	w := f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "one"}, {Title: "two"}, {Title: "three"}}})
	if w.ID != 7 {
		t.Fatalf("window id = %d, want 7", w.ID)
	}
	client := startBridge(t, f)

	var result map[string]any
	reply := client.call(t, "focus-1", CmdFocusTab, map[string]any{"tab": map[string]int{"id": 3, "windowId": 7}}, &result)

	want := []string{"focus 7", "activate 3"}
	if got := f.manager.Calls(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if string(reply.ID) != `"focus-1"` {
		t.Errorf("ID = %s", reply.ID)
	}
	if len(result) != 1 || result["ok"] != true {
		t.Errorf("result = %v, want {ok: true}", result)
	}
}

func TestBridgeFocusTabMissingWindow(t *testing.T) {
	f := newFixture(t)
	client := startBridge(t, f)

	var result ErrorResult
	client.call(t, 1, CmdFocusTab, FocusTabArgs{Tab: &TabRef{ID: 3, WindowID: 7}}, &result)
	if result.Code != CodeResourceUnavailable {
		t.Errorf("result = %+v, want resource_unavailable", result)
	}
	if got := f.manager.Calls(); !slices.Equal(got, []string{"focus 7"}) {
		t.Errorf("calls = %v, want only the focus attempt", got)
	}
}

func TestBridgeFocusTab(t *testing.T) {
	f := newFixture(t)
	f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "a"}}})
	second := f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "b"}, {Title: "c"}}})
	tabs, _ := f.host.ListTabs(context.Background())
	var target model.Tab
	for _, tab := range tabs {
		if tab.Title == "c" {
			target = tab
		}
	}

	client := startBridge(t, f)
	var result OKResult
	client.call(t, 1, CmdFocusTab, FocusTabArgs{Tab: &TabRef{ID: target.ID, WindowID: second.ID}}, &result)
	if !result.OK {
		t.Fatalf("result = %+v", result)
	}

	wantCalls := []string{"focus " + strconv.Itoa(second.ID), "activate " + strconv.Itoa(target.ID)}
	if got := f.manager.Calls(); !slices.Equal(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
	focused, _ := f.host.GetFocusedWindow(context.Background())
	if focused.ID != second.ID {
		t.Errorf("focused = %d, want %d", focused.ID, second.ID)
	}
	active, _ := f.host.ActiveTab(context.Background(), second.ID)
	if active.ID != target.ID {
		t.Errorf("active tab = %d, want %d", active.ID, target.ID)
	}
}

func TestBridgeListing(t *testing.T) {
	f := newFixture(t)
	client := startBridge(t, f)

	var windows []model.Window
	client.call(t, 1, CmdGetWindows, nil, &windows)
	if windows == nil || len(windows) != 0 {
		t.Errorf("empty host windows = %#v, want empty list", windows)
	}

	w := f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "Home", URL: "https://example.com"}}})

	client.call(t, 2, CmdGetWindows, nil, &windows)
	if len(windows) != 1 || windows[0].Title != "Home — Browser" {
		t.Errorf("windows = %+v", windows)
	}

	var tabs []model.Tab
	client.call(t, 3, CmdGetTabs, nil, &tabs)
	if len(tabs) != 1 || tabs[0].WindowID != w.ID || tabs[0].URL != "https://example.com" || !tabs[0].Active {
		t.Errorf("tabs = %+v", tabs)
	}

	var focused model.Window
	client.call(t, 4, CmdGetFocusedWindow, nil, &focused)
	if focused.ID != w.ID || !focused.Focused {
		t.Errorf("focused = %+v", focused)
	}
}

func TestBridgeIdentifyWindow(t *testing.T) {
	f := newFixture(t)
	w := f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "My Page"}}})
	client := startBridge(t, f)

	var on IdentifyResult
	client.call(t, 1, CmdIdentifyWindow, map[string]any{"windowId": w.ID, "on": true}, &on)
	if on.Identifier == nil {
		t.Fatal("identifier is null")
	}
	if got := f.title(t, w.ID); got != *on.Identifier+" My Page — Browser" {
		t.Errorf("title = %q", got)
	}

	var raw map[string]any
	client.call(t, 2, CmdIdentifyWindow, map[string]any{"windowId": w.ID, "on": false}, &raw)
	if v, ok := raw["identifier"]; !ok || v != nil {
		t.Errorf("off result = %v, want identifier: null", raw)
	}
	if got := f.title(t, w.ID); got != "My Page — Browser" {
		t.Errorf("restored title = %q", got)
	}
}

func TestBridgeInvalidArgs(t *testing.T) {
	f := newFixture(t)
	client := startBridge(t, f)

	tests := []struct {
		command string
		args    any
	}{
		{CmdIdentifyWindow, nil},
		{CmdIdentifyWindow, map[string]any{"windowId": 1}},
		{CmdIdentifyWindow, map[string]any{"windowId": "seven", "on": true}},
		{CmdFocusTab, map[string]any{}},
		{CmdFocusTab, []int{1, 2}},
	}
	for i, tt := range tests {
		var result ErrorResult
		client.call(t, i, tt.command, tt.args, &result)
		if result.Code != CodeInvalidArgs {
			t.Errorf("%s %v: result = %+v, want invalid_args", tt.command, tt.args, result)
		}
	}
	if calls := f.manager.Calls(); len(calls) != 0 {
		t.Errorf("mutations = %v, want none", calls)
	}
}

func TestBridgeSubscriptions(t *testing.T) {
	f := newFixture(t)
	client := startBridge(t, f)

	client.send(t, "new", SubNewWindow, nil)
	client.send(t, "close", SubCloseWindow, nil)
	// Wait until both listeners are registered.
	deadline := time.Now().Add(2 * time.Second)
	for {
		created, removed := f.host.Listeners()
		if created == 1 && removed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listeners = %d/%d, want 1/1", created, removed)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := f.host.OpenWindow(memory.WindowSpec{Tabs: []memory.TabSpec{{Title: "Fresh"}}})
	reply := client.next(t)
	if reply.Type != protocol.TypeUpdate || string(reply.ID) != `"new"` {
		t.Fatalf("reply = %+v", reply)
	}
	var pushed model.Window
	if err := client.conn.DecodeResults(reply.Results, &pushed); err != nil {
		t.Fatal(err)
	}
	if pushed.ID != w.ID || pushed.Title != "Fresh — Browser" {
		t.Errorf("pushed = %+v", pushed)
	}

	if err := f.host.CloseWindow(w.ID); err != nil {
		t.Fatal(err)
	}
	reply = client.next(t)
	if reply.Type != protocol.TypeUpdate || string(reply.ID) != `"close"` {
		t.Fatalf("reply = %+v", reply)
	}
	var ref model.WindowRef
	if err := client.conn.DecodeResults(reply.Results, &ref); err != nil {
		t.Fatal(err)
	}
	if ref.ID != w.ID {
		t.Errorf("closed id = %d, want %d", ref.ID, w.ID)
	}

	// Closing the channel removes the listeners.
	client.close()
	deadline = time.Now().Add(2 * time.Second)
	for {
		created, removed := f.host.Listeners()
		if created == 0 && removed == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listeners = %d/%d after close, want 0/0", created, removed)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
