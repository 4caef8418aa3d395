// Package poller runs status refresh tasks on a fixed interval.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const logPrefix = "poller:poller"

// DefaultInterval is the refresh cadence of the status panels.
const DefaultInterval = 30 * time.Second

// Task is one refresh. Its outcome does not influence the schedule.
type Task func(ctx context.Context)

// Poller runs a Task once immediately and then every interval until stopped.
type Poller struct {
	name     string
	task     Task
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches a poller. The parent context bounds its lifetime; Stop ends it early.
func Start(parent context.Context, name string, interval time.Duration, task Task) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Poller{
		name:     name,
		task:     task,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go p.loop(ctx)
	return p
}

// Name returns the poller's name.
func (p *Poller) Name() string {
	return p.name
}

// Interval returns the fixed tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Stop ends the poller and waits for a running tick to return.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the poller has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	slog.Info(fmt.Sprintf("%s - Starting %s every %s", logPrefix, p.name, p.interval))

	p.run(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info(fmt.Sprintf("%s - Stopped %s", logPrefix, p.name))
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// run executes one tick; a panicking task does not stop the schedule.
func (p *Poller) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s tick panicked: %v", logPrefix, p.name, r))
		}
	}()
	p.task(ctx)
}
