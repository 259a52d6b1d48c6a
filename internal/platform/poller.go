package platform

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mj1618/tab-bridge/internal/model"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = time.Second

// Poller implements EventSource for hosts that cannot push window events.
// It lists windows on an interval and diffs consecutive listings.
// Polling starts with the first registered listener.
type Poller struct {
	reader   Reader
	interval time.Duration
	logger   *slog.Logger

	// pollMu serializes Poll so listings are diffed in the order taken.
	pollMu sync.Mutex

	mu      sync.Mutex
	prev    []model.Window
	primed  bool
	nextID  int
	created map[int]func(model.Window)
	removed map[int]func(int)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewPoller creates a poller over reader. A zero interval uses
// DefaultPollInterval; a nil logger discards logs.
func NewPoller(reader Reader, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		reader:   reader,
		interval: interval,
		logger:   logger,
		created:  make(map[int]func(model.Window)),
		removed:  make(map[int]func(int)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnWindowCreated registers fn until ctx is done.
func (p *Poller) OnWindowCreated(ctx context.Context, fn func(model.Window)) error {
	if err := p.prime(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.created[id] = fn
	p.mu.Unlock()

	p.start()
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.created, id)
		p.mu.Unlock()
	}()
	return nil
}

// OnWindowRemoved registers fn until ctx is done.
func (p *Poller) OnWindowRemoved(ctx context.Context, fn func(int)) error {
	if err := p.prime(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.removed[id] = fn
	p.mu.Unlock()

	p.start()
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.removed, id)
		p.mu.Unlock()
	}()
	return nil
}

// Poll lists windows once and notifies listeners of any windows created or
// removed since the previous poll. The first poll only records a baseline.
func (p *Poller) Poll(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	windows, err := p.reader.ListWindows(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if !p.primed {
		p.prev = windows
		p.primed = true
		p.mu.Unlock()
		return nil
	}
	changes := model.DiffWindows(p.prev, windows)
	p.prev = windows
	created := make([]func(model.Window), 0, len(p.created))
	for _, fn := range p.created {
		created = append(created, fn)
	}
	removed := make([]func(int), 0, len(p.removed))
	for _, fn := range p.removed {
		removed = append(removed, fn)
	}
	p.mu.Unlock()

	for _, c := range changes {
		switch c.Type {
		case model.ChangeAdded:
			for _, fn := range created {
				fn(*c.Window)
			}
		case model.ChangeRemoved:
			for _, fn := range removed {
				fn(c.ID)
			}
		}
	}
	return nil
}

// Stop ends background polling. Safe to call more than once.
func (p *Poller) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	// A poller that never started has no goroutine to close done.
	p.startOnce.Do(func() { close(p.done) })
	<-p.done
	return nil
}

// prime records the baseline listing so windows that already exist when a
// listener registers are not reported as created.
func (p *Poller) prime(ctx context.Context) error {
	p.mu.Lock()
	primed := p.primed
	p.mu.Unlock()
	if primed {
		return nil
	}
	return p.Poll(ctx)
}

func (p *Poller) start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval*5)
			if err := p.Poll(ctx); err != nil {
				p.logger.Debug("window poll failed", "error", err)
			}
			cancel()
		}
	}
}
