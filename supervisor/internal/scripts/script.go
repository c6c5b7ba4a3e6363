// Package scripts implements the supervisor's cooperative script
// engine: loader, health, interlock, relax, reducer, ramp guard, each
// an independent goroutine with a shared start/stop/trigger lifecycle
// cancelled via context.
package scripts

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
)

// Script is the polymorphic unit of work every control loop implements.
// A Script owns one memo entry under a fixed key; the loop it runs
// checks ctx.Done() at every suspension point so Stop takes effect at
// the next one rather than mid-tick.
type Script interface {
	Name() string
	StartIfNot()
	Stop()
	Trigger()
	Running() bool
}

// ExecFunc is the script-specific payload run once per iteration.
type ExecFunc func(ctx context.Context)

// Base implements the StartIfNot/Stop/Trigger/loop scaffolding shared by
// every concrete script, so each script type only needs to supply its
// name, its memo entry, and an ExecFunc.
type Base struct {
	name string
	memo *memo.Memo

	exec   ExecFunc
	onStart func()
	onStop  func()

	mu     sync.Mutex
	cancel context.CancelFunc
	running bool
}

// NewBase wires a Base to its memo entry and exec function. onStart and
// onStop may be nil.
func NewBase(name string, m *memo.Memo, exec ExecFunc, onStart, onStop func()) *Base {
	return &Base{name: name, memo: m, exec: exec, onStart: onStart, onStop: onStop}
}

// Name returns the script's memo key.
func (b *Base) Name() string { return b.name }

// Running reports whether the loop goroutine is currently alive.
func (b *Base) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// StartIfNot is idempotent: if the loop is already running it is a
// no-op beyond flipping enable back on.
func (b *Base) StartIfNot() {
	b.memo.SetEnable(b.name, true)

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		log.WithField("script", b.name).Warn("scenario is already started")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.running = true
	b.mu.Unlock()

	if b.onStart != nil {
		go b.onStart()
	}

	log.WithField("script", b.name).Info("start scenario")
	go b.loop(ctx)
}

// Stop disables the script and cancels its loop; the loop observes the
// cancellation at its next suspension point.
func (b *Base) Stop() {
	b.memo.SetEnable(b.name, false)

	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.running = false
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if b.onStop != nil {
		go b.onStop()
	}
	log.WithField("script", b.name).Info("stop scenario")
}

// Trigger starts or stops the script to match the memo's current enable
// flag, the only way the manager flips scripts on/off.
func (b *Base) Trigger() {
	entry, ok := b.memo.Get(b.name)
	if !ok {
		return
	}
	running := b.Running()
	if entry.Enable && !running {
		b.StartIfNot()
	} else if !entry.Enable && running {
		b.Stop()
	}
}

// loop times exec_function, sleeps the remainder of repeat_every, then
// reschedules itself unless the memo's enable flag has flipped off or
// the context was cancelled.
func (b *Base) loop(ctx context.Context) {
	for {
		start := time.Now()
		b.exec(ctx)

		select {
		case <-ctx.Done():
			log.WithField("script", b.name).Info("task was cancelled")
			return
		default:
		}

		entry, ok := b.memo.Get(b.name)
		if !ok {
			return
		}

		elapsed := time.Since(start).Seconds()
		sleepFor := entry.RepeatEvery - elapsed
		if sleepFor < 0 {
			sleepFor = 0
		}

		timer := time.NewTimer(time.Duration(sleepFor * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.WithField("script", b.name).Info("task was cancelled")
			return
		case <-timer.C:
		}

		entry, ok = b.memo.Get(b.name)
		if !ok || !entry.Enable {
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()
			return
		}
	}
}
