package driver

import "sync"

// Fake is an in-memory Driver for tests and demo runs: every channel's
// VSet tracks the last commanded multiplier times its fixed VDef, with
// no ramping or fault simulation.
type Fake struct {
	mu       sync.Mutex
	channels map[string]Channel
}

// NewFake builds a Fake seeded with the given channel rated voltages
// (VDef), each starting at VSet=VDef (full target) and status ON.
func NewFake(vdef map[string]float64) *Fake {
	channels := make(map[string]Channel, len(vdef))
	for alias, def := range vdef {
		channels[alias] = Channel{VMon: def, VSet: def, VDef: def, IMonH: 0.5, ChStatus: 1}
	}
	return &Fake{channels: channels}
}

func (f *Fake) Params() (map[string]Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Channel, len(f.channels))
	for alias, ch := range f.channels {
		out[alias] = ch
	}
	return out, nil
}

func (f *Fake) SetVoltage(target float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for alias, ch := range f.channels {
		ch.VSet = ch.VDef * target
		ch.VMon = ch.VSet
		f.channels[alias] = ch
	}
	return nil
}

func (f *Fake) Down() error {
	return f.SetVoltage(0)
}
