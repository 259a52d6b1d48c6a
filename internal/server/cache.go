package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mj1618/tab-bridge/internal/platform"
	"github.com/mj1618/tab-bridge/internal/telemetry"
)

// IdentifyResult is the results payload of identify_window. Identifier is
// nil when no identifier is active or another request won the race.
type IdentifyResult struct {
	Identifier *string `json:"identifier" yaml:"identifier"`
}

// identifyEntry records what the cache wrote into a window's title preface.
// A pending entry has been claimed but its first title write has not
// finished.
type identifyEntry struct {
	previousPreface string
	identifier      string
	pending         bool
}

func (e identifyEntry) preface() string {
	return e.previousPreface + e.identifier + " "
}

// IdentifyCache marks windows with a unique identifier in their title
// preface so external tools can find the OS window, and restores the exact
// previous preface when asked to stop.
//
// An entry exists for a window exactly while its preface carries the
// identifier written by the cache.
type IdentifyCache struct {
	reader  platform.Reader
	windows platform.WindowManager
	logger  *slog.Logger
	metrics *telemetry.Metrics

	newIdentifier func() (string, error)

	mu      sync.Mutex
	entries map[int]identifyEntry
}

// NewIdentifyCache creates a cache over the provider's reader and window
// manager. logger and metrics may be nil.
func NewIdentifyCache(provider *platform.Provider, logger *slog.Logger, metrics *telemetry.Metrics) *IdentifyCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IdentifyCache{
		reader:        provider.Reader,
		windows:       provider.WindowManager,
		logger:        logger,
		metrics:       metrics,
		newIdentifier: randomIdentifier,
		entries:       make(map[int]identifyEntry),
	}
}

// Identify turns the identifier of a window on or off.
//
// Turning it on returns the window's identifier, creating one on first use
// and re-applying it otherwise. If a concurrent request created the entry
// first, or is still writing it, the result is null and nothing is written.
// Turning it off restores the preface the window had before and returns
// null; it is a no-op for windows without an identifier, including one
// whose identifier is still being written.
func (c *IdentifyCache) Identify(ctx context.Context, windowID int, on bool) (IdentifyResult, error) {
	if !on {
		return c.clear(ctx, windowID)
	}

	c.mu.Lock()
	e, ok := c.entries[windowID]
	c.mu.Unlock()
	if ok && e.pending {
		c.logger.Debug("identify in progress", "window_id", windowID)
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyRaceLost)
		return IdentifyResult{}, nil
	}
	if ok {
		return c.refresh(ctx, windowID, e)
	}
	return c.create(ctx, windowID)
}

func (c *IdentifyCache) clear(ctx context.Context, windowID int) (IdentifyResult, error) {
	c.mu.Lock()
	e, ok := c.entries[windowID]
	if ok && e.pending {
		ok = false
	}
	if ok {
		delete(c.entries, windowID)
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyNoop)
		return IdentifyResult{}, nil
	}

	if err := c.windows.SetTitlePreface(ctx, windowID, e.previousPreface); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			c.logger.Debug("window closed before restore", "window_id", windowID)
			c.metrics.RecordIdentify(ctx, telemetry.IdentifyCleared)
			return IdentifyResult{}, nil
		}
		c.mu.Lock()
		if _, exists := c.entries[windowID]; !exists {
			c.entries[windowID] = e
		}
		c.mu.Unlock()
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyFailed)
		return IdentifyResult{}, fmt.Errorf("restore preface of window %d: %w", windowID, err)
	}

	c.logger.Debug("identifier cleared", "window_id", windowID)
	c.metrics.RecordIdentify(ctx, telemetry.IdentifyCleared)
	return IdentifyResult{}, nil
}

func (c *IdentifyCache) refresh(ctx context.Context, windowID int, e identifyEntry) (IdentifyResult, error) {
	if err := c.windows.SetTitlePreface(ctx, windowID, e.preface()); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			c.drop(windowID, e.identifier)
		}
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyFailed)
		return IdentifyResult{}, unavailable(fmt.Errorf("refresh preface of window %d: %w", windowID, err))
	}
	c.metrics.RecordIdentify(ctx, telemetry.IdentifyRefreshed)
	identifier := e.identifier
	return IdentifyResult{Identifier: &identifier}, nil
}

func (c *IdentifyCache) create(ctx context.Context, windowID int) (IdentifyResult, error) {
	identifier, err := c.newIdentifier()
	if err != nil {
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyFailed)
		return IdentifyResult{}, fmt.Errorf("generate identifier: %w", err)
	}

	previous, err := c.previousPreface(ctx, windowID)
	if err != nil {
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyFailed)
		return IdentifyResult{}, unavailable(err)
	}

	// Host reads above ran without the lock; another request may have
	// claimed the window meanwhile.
	e := identifyEntry{previousPreface: previous, identifier: identifier, pending: true}
	c.mu.Lock()
	if _, exists := c.entries[windowID]; exists {
		c.mu.Unlock()
		c.logger.Debug("identify lost race", "window_id", windowID)
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyRaceLost)
		return IdentifyResult{}, nil
	}
	c.entries[windowID] = e
	c.mu.Unlock()

	if err := c.windows.SetTitlePreface(ctx, windowID, e.preface()); err != nil {
		c.drop(windowID, identifier)
		c.metrics.RecordIdentify(ctx, telemetry.IdentifyFailed)
		return IdentifyResult{}, unavailable(fmt.Errorf("set preface of window %d: %w", windowID, err))
	}
	c.commit(windowID, identifier)

	c.logger.Debug("identifier created", "window_id", windowID, "identifier", identifier)
	c.metrics.RecordIdentify(ctx, telemetry.IdentifyCreated)
	return IdentifyResult{Identifier: &identifier}, nil
}

// previousPreface reads the window and its active tab and derives the
// preface shown before the tab title.
func (c *IdentifyCache) previousPreface(ctx context.Context, windowID int) (string, error) {
	w, err := c.reader.GetWindow(ctx, windowID)
	if err != nil {
		return "", err
	}
	tab, err := c.reader.ActiveTab(ctx, windowID)
	if err != nil {
		return "", err
	}
	return PreviousPreface(w.Title, tab.Title), nil
}

// commit marks the entry for windowID written if it still carries
// identifier.
func (c *IdentifyCache) commit(windowID int, identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[windowID]; ok && cur.identifier == identifier {
		cur.pending = false
		c.entries[windowID] = cur
	}
}

// drop removes the entry for windowID if it still carries identifier.
func (c *IdentifyCache) drop(windowID int, identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[windowID]; ok && cur.identifier == identifier {
		delete(c.entries, windowID)
	}
}

// Watch forgets the entries of windows the host reports closed, until ctx
// is done.
func (c *IdentifyCache) Watch(ctx context.Context, events platform.EventSource) error {
	return events.OnWindowRemoved(ctx, func(windowID int) {
		c.mu.Lock()
		_, ok := c.entries[windowID]
		delete(c.entries, windowID)
		c.mu.Unlock()
		if ok {
			c.logger.Debug("forgot closed window", "window_id", windowID)
		}
	})
}

// Lookup returns the identifier and saved preface for a window whose
// identifier has been written.
func (c *IdentifyCache) Lookup(windowID int) (identifier, previousPreface string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[windowID]
	if !ok || e.pending {
		return "", "", false
	}
	return e.identifier, e.previousPreface, true
}

// Len returns the number of identified windows.
func (c *IdentifyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// PreviousPreface returns the part of windowTitle before the first
// occurrence of tabTitle, or "" when tabTitle does not occur.
func PreviousPreface(windowTitle, tabTitle string) string {
	i := strings.Index(windowTitle, tabTitle)
	if i < 0 {
		return ""
	}
	return windowTitle[:i]
}

func randomIdentifier() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
