// Package driver defines the opaque physical interface device_backend
// wraps, grounded on caen_setup.Handler/Ticket as used by
// DeviceBackend/apifactory.py: a single Handler performing ticket-style
// operations against the real CAEN crate. Channel identity (board/
// conet/link/channel) is this package's private concern, never exposed
// past its own boundary.
package driver

// Channel is one channel's latest telemetry sample, keyed by the
// caller-facing alias.
type Channel struct {
	VMon      float64
	VSet      float64
	VDef      float64
	IMonH     float64
	IMonL     float64
	ImonRange int
	ChStatus  int
}

// Driver performs the physical operations against the HV crate. All
// methods are blocking and must not be retried by their caller; a
// Driver that cannot reach the crate returns an error, which the API
// layer turns into statuscode=0.
type Driver interface {
	// Params returns every channel's current telemetry, keyed by alias.
	Params() (map[string]Channel, error)
	// SetVoltage commands every channel to target (as a multiplier of its
	// rated voltage, matching the Python source's "target_voltage" unit).
	SetVoltage(target float64) error
	// Down drives every channel to 0 V.
	Down() error
}
