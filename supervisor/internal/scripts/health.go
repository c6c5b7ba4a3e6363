package scripts

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// HealthSender identifies receipts the health script issues.
const HealthSender = "syscheck/healthcontrol"

// healthMChSKey is the MChS aggregate key this script owns.
const healthMChSKey = "healthok"

var healthParams = []string{"IMonH", "IMonL", "ImonRange", "ChStatus", "VSet", "VDef"}

// MaxCurrentLimits is channel -> {steady, volt_change} current limits.
type MaxCurrentLimits map[string]map[string]float64

// HealthControl is the channel state machine that, per tick, pulls
// device parameters, evaluates status/current/ramping/low-voltage,
// synthesizes an ACK/NACK/FAILURE verdict, and on FAILURE stops its
// dependent scripts and downs the device.
//
// Uses a last-breath ramp-down-tolerance FSM: a channel that drops out
// of ramp-down gets one extra grace window before it is judged failed,
// rather than failing the instant the ramp-down bit clears.
type HealthControl struct {
	*Base

	cli              *router.AsyncClient
	mchs             *mchs.Worker
	maxCurrents      MaxCurrentLimits
	dependentScripts []Script
	lowVoltageMlt    float64

	rdownMu sync.Mutex
	rdown   map[string]*structures.RampDownInfo
}

// NewHealthControl builds the health script. tripTimes gives each
// channel's configured ramp-down trip time, loaded from the
// ramp_down_trip_time JSON document.
func NewHealthControl(
	m *memo.Memo,
	cli *router.AsyncClient,
	mchsWorker *mchs.Worker,
	maxCurrents MaxCurrentLimits,
	tripTimes map[string]time.Duration,
	lowVoltageMlt float64,
	dependentScripts []Script,
) *HealthControl {
	rdown := make(map[string]*structures.RampDownInfo, len(tripTimes))
	for ch, tt := range tripTimes {
		rdown[ch] = &structures.RampDownInfo{TripTime: tt}
	}

	h := &HealthControl{
		cli:              cli,
		mchs:             mchsWorker,
		maxCurrents:      maxCurrents,
		dependentScripts: dependentScripts,
		lowVoltageMlt:    lowVoltageMlt,
		rdown:            rdown,
	}
	h.Base = NewBase("health", m, h.exec, nil, h.onStop)
	return h
}

func (h *HealthControl) onStop() {
	h.mchs.PopKeyState(healthMChSKey)
}

func (h *HealthControl) exec(ctx context.Context) {
	resp := h.cli.Query(receipts.GetParams(HealthSender, healthParams))
	if !resp.Response.IsOK() {
		log.Warn("health: no connection with device_backend")
		h.Base.memo.SetLastCheck("health", structures.NewCheckResult(structures.CodeDevbackError))
		return
	}

	body, _ := resp.Response.AsMap()
	rawParams, _ := body["params"].(map[string]interface{})

	params := make(map[string]structures.ChannelParams, len(rawParams))
	for ch, v := range rawParams {
		if fields, ok := v.(map[string]interface{}); ok {
			params[ch] = toChannelParams(fields)
		}
	}

	verdict := h.evaluate(params)

	if verdict == healthFailure {
		h.failureActions()
		return
	}

	// ACK and NACK both mean status-ok && current-ok; only ramping or
	// low-voltage differs between them, which MChS does not track under
	// this key (RampGuard owns the "noramping" key separately).
	h.mchs.SetState(healthMChSKey, true)
	h.mchs.SendState()
	h.Base.memo.SetLastCheck("health", structures.NewCheckResult(structures.CodeOK))
}

type healthVerdict int

const (
	healthAck healthVerdict = iota
	healthNack
	healthFailure
)

// evaluate runs the full per-tick procedure: status, current, ramping
// and low-voltage checks folded into one ACK/NACK/FAILURE verdict.
func (h *HealthControl) evaluate(params map[string]structures.ChannelParams) healthVerdict {
	ramping := false
	var sumVSet, sumVDef float64
	for _, p := range params {
		if structures.IsRamping(p.ChStatus) {
			ramping = true
		}
		sumVSet += p.VSet
		sumVDef += p.VDef
	}

	multiplier := 0.0
	if sumVDef != 0 {
		multiplier = sumVSet / sumVDef
	}
	lowVoltage := multiplier <= h.lowVoltageMlt

	statusOK := h.checkStatusWithTripTime(params)
	currentOK := h.checkCurrents(params)

	switch {
	case statusOK && currentOK && !ramping && !lowVoltage:
		return healthAck
	case statusOK && currentOK && (ramping || lowVoltage):
		return healthNack
	default:
		return healthFailure
	}
}

// checkStatusWithTripTime applies the ramp-down tolerance FSM to every
// channel and returns whether every channel currently passes.
func (h *HealthControl) checkStatusWithTripTime(params map[string]structures.ChannelParams) bool {
	return h.checkStatusWithTripTimeAt(params, time.Now())
}

// checkStatusWithTripTimeAt is checkStatusWithTripTime with an injected
// clock, so tests can drive the FSM's grace windows deterministically.
func (h *HealthControl) checkStatusWithTripTimeAt(params map[string]structures.ChannelParams, now time.Time) bool {
	h.rdownMu.Lock()
	defer h.rdownMu.Unlock()

	allGood := true

	for ch, p := range params {
		if structures.IsGoodStatus(p.ChStatus) {
			h.resetRampDown(ch)
			continue
		}

		if !structures.IsOverOrUnderVoltageOnly(p.ChStatus) {
			h.resetRampDown(ch)
			allGood = false
			continue
		}

		info, ok := h.rdown[ch]
		if !ok {
			info = &structures.RampDownInfo{}
			h.rdown[ch] = info
		}

		good := h.advanceRampDownFSM(info, structures.IsRampingDown(p.ChStatus), now)
		if !good {
			allGood = false
		}
	}

	return allGood
}

// resetRampDown clears a channel's ramp-down bookkeeping once it is no
// longer in the over/under-voltage-only state. Caller holds rdownMu.
func (h *HealthControl) resetRampDown(ch string) {
	info, ok := h.rdown[ch]
	if !ok {
		return
	}
	info.LastBreath = false
	info.Timestamp = nil
	info.IsRdown = false
}

// advanceRampDownFSM advances one channel's ramp-down-tolerance state by
// one tick and reports whether the channel still passes.
func (h *HealthControl) advanceRampDownFSM(info *structures.RampDownInfo, rampDownBit bool, now time.Time) bool {
	if rampDownBit {
		if info.Timestamp == nil && !info.IsRdown && !info.LastBreath {
			ts := now
			info.Timestamp = &ts
			info.IsRdown = true
			return true
		}
		if info.Timestamp != nil && info.IsRdown {
			if now.Sub(*info.Timestamp) < info.TripTime {
				return true
			}
			return false
		}
		// Ramp-down bit set but no recognised predecessor state: start
		// the grace window fresh rather than fail immediately.
		ts := now
		info.Timestamp = &ts
		info.IsRdown = true
		return true
	}

	// rampDownBit == false
	if !info.LastBreath {
		info.LastBreath = true
		ts := now
		info.Timestamp = &ts
		info.IsRdown = false
		return true
	}

	// last_breath == true
	if info.Timestamp != nil && now.Sub(*info.Timestamp) < info.TripTime {
		return true
	}
	info.LastBreath = false
	info.Timestamp = nil
	info.IsRdown = false
	return false
}

func (h *HealthControl) checkCurrents(params map[string]structures.ChannelParams) bool {
	for ch, p := range params {
		limits, ok := h.maxCurrents[ch]
		if !ok {
			log.WithField("channel", ch).Warn("health: channel missing from max currents config")
			return false
		}
		current, key := structures.CurrentAndLimitKey(p)
		limit, ok := limits[key]
		if !ok {
			return false
		}
		if current >= limit {
			return false
		}
	}
	return true
}

func (h *HealthControl) failureActions() {
	log.Error("health: bad device parameters, emergency down-voltage")

	for _, s := range h.dependentScripts {
		s.Stop()
	}

	h.mchs.SetState(healthMChSKey, false)
	h.mchs.SendState()

	resp := h.cli.Query(receipts.Down(HealthSender))
	if resp.Response == nil || !resp.Response.IsOK() {
		log.Error("health: down receipt failed, retrying once")
		resp = h.cli.Query(receipts.Down(HealthSender))
		log.WithField("response", resp.Response).Info("health: down retry result")
	}

	h.Base.memo.SetLastCheck("health", structures.NewCheckResult(structures.CodeFailure))
}

func toChannelParams(fields map[string]interface{}) structures.ChannelParams {
	return structures.ChannelParams{
		VMon:      asFloat(fields["VMon"]),
		VSet:      asFloat(fields["VSet"]),
		VDef:      asFloat(fields["VDef"]),
		IMonH:     asFloat(fields["IMonH"]),
		IMonL:     asFloat(fields["IMonL"]),
		ImonRange: int(asFloat(fields["ImonRange"])),
		ChStatus:  int(asFloat(fields["ChStatus"])),
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
