//go:build unix

package peer

import "testing"

func TestBridgeCommandDetached(t *testing.T) {
	cmd := bridgeCommand("/bin/true", []string{"serve", "--stdio"})
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Errorf("SysProcAttr = %+v, want a new process group", cmd.SysProcAttr)
	}
	if cmd.Cancel != nil {
		t.Error("child is bound to a context")
	}
	if got := cmd.Args; len(got) != 3 || got[1] != "serve" {
		t.Errorf("Args = %v", got)
	}
}
