// Package config loads the supervisor's INI control-plane document and
// its JSON health side-config. Uses `gopkg.in/ini.v1` rather than Viper
// because the wire format's section names (`[check.autopilot.relax]`)
// are literal dotted names, not nested keys Viper would otherwise
// flatten.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"
)

// ScriptConfig is one `[check.*]` section's recognised keys.
type ScriptConfig struct {
	Enable          bool    `ini:"enable"`
	RepeatEvery     float64 `ini:"repeat_every"`
	VoltageModifier float64 `ini:"voltage_modifier"`
	TargetVoltage   float64 `ini:"target_voltage"`
	ReducingPeriod  float64 `ini:"reducing_period"`
	LowVoltageMlt   float64 `ini:"low_voltage_mlt"`
}

// Config is the full supervisor control-plane document.
type Config struct {
	WS      WSConfig
	Device  EndpointConfig
	Monitor EndpointConfig

	Check           ScriptConfig
	Health          ScriptConfig
	Relax           ScriptConfig
	Reducer         ScriptConfig
	RampGuard       ScriptConfig
	Interlock       ScriptConfig
	Loader          ScriptConfig
	MChS            MChSSection

	MaxCurrentFile    string
	TripTimeFile      string
	InterlockSourceURI string
}

// WSConfig is the `[ws]` section: the supervisor's own API endpoint.
type WSConfig struct {
	Bind string `ini:"bind"`
}

// EndpointConfig is a `[device]`/`[monitor]` section: the dealer
// endpoint this supervisor reaches that service through.
type EndpointConfig struct {
	Address string `ini:"address"`
}

// MChSSection is the `[check.mchs]` section.
type MChSSection struct {
	UDPIP    string `ini:"udp_ip"`
	UDPPort  string `ini:"udp_port"`
	ClientID string `ini:"client_id"`
}

// Load reads path (INI) into a Config. Unknown keys are ignored,
// missing sections leave their zero value.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %q: %w", path, err)
	}

	cfg := &Config{}

	if err := f.Section("ws").MapTo(&cfg.WS); err != nil {
		return nil, fmt.Errorf("config: [ws]: %w", err)
	}
	if err := f.Section("device").MapTo(&cfg.Device); err != nil {
		return nil, fmt.Errorf("config: [device]: %w", err)
	}
	if err := f.Section("monitor").MapTo(&cfg.Monitor); err != nil {
		return nil, fmt.Errorf("config: [monitor]: %w", err)
	}
	if err := f.Section("check").MapTo(&cfg.Check); err != nil {
		return nil, fmt.Errorf("config: [check]: %w", err)
	}
	if err := f.Section("check.health").MapTo(&cfg.Health); err != nil {
		return nil, fmt.Errorf("config: [check.health]: %w", err)
	}
	if err := f.Section("check.autopilot.relax").MapTo(&cfg.Relax); err != nil {
		return nil, fmt.Errorf("config: [check.autopilot.relax]: %w", err)
	}
	if err := f.Section("check.autopilot.reducer").MapTo(&cfg.Reducer); err != nil {
		return nil, fmt.Errorf("config: [check.autopilot.reducer]: %w", err)
	}
	if err := f.Section("check.autopilot.ramp_guard").MapTo(&cfg.RampGuard); err != nil {
		return nil, fmt.Errorf("config: [check.autopilot.ramp_guard]: %w", err)
	}
	if err := f.Section("check.interlock").MapTo(&cfg.Interlock); err != nil {
		return nil, fmt.Errorf("config: [check.interlock]: %w", err)
	}
	if err := f.Section("check.loader").MapTo(&cfg.Loader); err != nil {
		return nil, fmt.Errorf("config: [check.loader]: %w", err)
	}
	if err := f.Section("check.mchs").MapTo(&cfg.MChS); err != nil {
		return nil, fmt.Errorf("config: [check.mchs]: %w", err)
	}

	cfg.MaxCurrentFile = f.Section("check.health").Key("max_current_file").String()
	cfg.TripTimeFile = f.Section("check.health").Key("ramp_down_trip_time_file").String()
	cfg.InterlockSourceURI = f.Section("check.interlock").Key("source_uri").String()

	return cfg, nil
}

// MaxCurrents is channel -> {steady, volt_change} in amperes.
type MaxCurrents map[string]map[string]float64

// TripTimes is channel -> ramp-down trip time.
type TripTimes map[string]time.Duration

// LoadHealthSideConfig reads the health JSON side-config: max_current
// and ramp_down_trip_time, channel -> value(s).
func LoadHealthSideConfig(maxCurrentPath, tripTimePath string) (MaxCurrents, TripTimes, error) {
	maxCurrentBytes, err := os.ReadFile(maxCurrentPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read max_current file: %w", err)
	}
	var maxCurrents MaxCurrents
	if err := json.Unmarshal(maxCurrentBytes, &maxCurrents); err != nil {
		return nil, nil, fmt.Errorf("config: parse max_current file: %w", err)
	}

	tripTimeBytes, err := os.ReadFile(tripTimePath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read ramp_down_trip_time file: %w", err)
	}
	var rawTripTimes map[string]float64
	if err := json.Unmarshal(tripTimeBytes, &rawTripTimes); err != nil {
		return nil, nil, fmt.Errorf("config: parse ramp_down_trip_time file: %w", err)
	}
	tripTimes := make(TripTimes, len(rawTripTimes))
	for ch, secs := range rawTripTimes {
		tripTimes[ch] = time.Duration(secs * float64(time.Second))
	}

	return maxCurrents, tripTimes, nil
}
