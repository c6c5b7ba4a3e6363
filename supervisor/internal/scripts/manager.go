package scripts

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
)

// Manager enables/disables every managed script by calling Trigger() on
// it every RepeatEvery seconds, grounded on manager.py's ManagerScript.
// This is the only place shared-memo enable flips take observable
// effect, so an operator toggling a script via the façade takes effect
// on the manager's next tick.
type Manager struct {
	base    *Base
	managed []Script
}

// NewManager builds a manager that ticks every managed script once per
// repeatEvery seconds. The manager itself is always enabled.
func NewManager(m *memo.Memo, repeatEvery float64, managed []Script) *Manager {
	mgr := &Manager{managed: managed}
	m.Register("manager", &memo.ScriptEntry{Enable: true, RepeatEvery: repeatEvery})
	mgr.base = NewBase("manager", m, mgr.tick, nil, nil)
	return mgr
}

func (mgr *Manager) tick(ctx context.Context) {
	for _, s := range mgr.managed {
		s.Trigger()
	}
}

// Start begins the manager's own tick loop.
func (mgr *Manager) Start() { mgr.base.StartIfNot() }

// Stop halts the manager loop, leaving whatever state the managed
// scripts were last in untouched.
func (mgr *Manager) Stop() { mgr.base.Stop() }

// WaitGrace cancels every managed script, then gives them graceFor to
// finish their current loop iteration before returning, mirroring spec
// §5's "soft-stop, wait a grace period, then escalate" shutdown model
// (escalation itself is the caller's process exit, there being no
// forcible goroutine kill in Go).
func (mgr *Manager) WaitGrace(graceFor time.Duration) {
	for _, s := range mgr.managed {
		s.Stop()
	}
	log.WithField("grace", graceFor).Info("waiting for scripts to settle")
	time.Sleep(graceFor)
}
