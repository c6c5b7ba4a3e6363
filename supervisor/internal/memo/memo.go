// Package memo implements the supervisor's shared memo: a process-wide,
// mutex-protected mapping keyed by script name that the worker loop and
// the API server both read. The worker loop's scripts write their
// entries; the API server writes only enable flags and target voltages.
package memo

import (
	"sync"

	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// ScriptEntry is one script's slice of the shared memo. Fields beyond
// Enable/RepeatEvery/LastCheck are used only by the scripts that need
// them (relax, reducer).
type ScriptEntry struct {
	Enable         bool
	RepeatEvery    float64
	LastCheck      *structures.CheckResult
	TargetVoltage  float64
	VoltageModifier float64
	ReducingPeriod float64
	LowVoltageMlt  float64
}

// MChSConfig holds the MChS UDP sink's address, stored as its own
// top-level memo entry.
type MChSConfig struct {
	UDPIP    string
	UDPPort  string
	ClientID string
}

// Memo is the shared, mutex-protected table. One writer per script key
// (that script's own goroutine, plus reducer on relax's entry); the
// manager flips Enable; the API server flips Enable and sets
// TargetVoltage.
type Memo struct {
	mu      sync.RWMutex
	scripts map[string]*ScriptEntry
	mchs    MChSConfig
}

// New creates an empty memo.
func New() *Memo {
	return &Memo{scripts: make(map[string]*ScriptEntry)}
}

// Register installs a script's initial entry under name, replacing any
// existing entry. Called once at startup per script.
func (m *Memo) Register(name string, entry *ScriptEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[name] = entry
}

// Get returns a copy of a script's current entry, or false if no script
// is registered under that name.
func (m *Memo) Get(name string) (ScriptEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.scripts[name]
	if !ok {
		return ScriptEntry{}, false
	}
	return *e, true
}

// SetEnable flips a script's enable flag, the one field the manager and
// the API server are allowed to mutate on another script's behalf.
func (m *Memo) SetEnable(name string, enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.scripts[name]; ok {
		e.Enable = enable
	}
}

// SetLastCheck records a script's latest tick outcome.
func (m *Memo) SetLastCheck(name string, result *structures.CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.scripts[name]; ok {
		e.LastCheck = result
	}
}

// Mutate applies fn to a script's entry under the write lock, for
// scripts like reducer that need to read-modify-write several fields of
// their own (or another script's) entry atomically.
func (m *Memo) Mutate(name string, fn func(*ScriptEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.scripts[name]; ok {
		fn(e)
	}
}

// Names returns every registered script name, for the manager and the
// API server's status listing.
func (m *Memo) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scripts))
	for name := range m.scripts {
		names = append(names, name)
	}
	return names
}

// SetMChS installs the MChS sink configuration.
func (m *Memo) SetMChS(cfg MChSConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mchs = cfg
}

// MChS returns the MChS sink configuration.
func (m *Memo) MChS() MChSConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mchs
}
