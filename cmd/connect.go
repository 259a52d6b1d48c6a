package cmd

import (
	"context"
	"os"

	"github.com/mj1618/tab-bridge/internal/config"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/mj1618/tab-bridge/internal/protocol"
)

// connectBridge returns a client for the configured bridge: the socket
// when one is set, otherwise a child "serve --stdio" process that lives
// until the client is closed.
func connectBridge(ctx context.Context) (*peer.Client, error) {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.Socket != "" {
		return peer.Dial(ctx, cfg.Socket, codec, logger)
	}
	return peer.Spawn(ctx, peer.SpawnOptions{
		Args:   childArgs(cfg, configFile),
		Codec:  codec,
		Stderr: os.Stderr,
		Logger: logger,
	})
}

// childArgs forwards the resolved settings to a spawned bridge.
func childArgs(c config.Config, configPath string) []string {
	args := []string{"--host", c.Host, "--log-level", c.LogLevel}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if c.Fixture != "" {
		args = append(args, "--fixture", c.Fixture)
	}
	return args
}

// callContext bounds one command by the configured timeout.
func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Timeout)
}
