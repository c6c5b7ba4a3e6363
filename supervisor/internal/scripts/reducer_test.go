package scripts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
)

// repeat_every=300, reducing_period=60, reducer voltage_modifier=0.4.
// The reducer stashes relax's
// (100, 1.0), writes (40, 1.0), commands 40V, then at the end of the
// dip restores relax to (100, 1.0) and commands 100V, since the
// interlock is clear throughout.
//
// The waiting/reducing/settle sleeps are driven with sub-second
// durations here (RepeatEvery/ReducingPeriod are in seconds per the
// memo contract) so the test completes quickly while exercising the
// same state machine at the 300/60 scale.
func TestReducerScheduledDipReducesThenRestores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	var targets []float64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, cleanup := newRelaxTestBroker(t, func(r *receipt.Receipt) *receipt.Receipt {
		switch r.Title {
		case "set_voltage":
			target, _ := r.Params["target_voltage"].(float64)
			targets = append(targets, target)
			if len(targets) == 2 {
				// The restore-settle sleep is 30s in the real FSM; cancel
				// right after the restoring set_voltage so the test
				// doesn't wait out that window.
				cancel()
			}
			return r.WithResponse(receipt.StatusOK, nil)
		default:
			return r.WithResponse(receipt.StatusNotFound, "unexpected")
		}
	})
	defer cleanup()

	m := memo.New()
	m.Register("relax", &memo.ScriptEntry{Enable: true, TargetVoltage: 100, VoltageModifier: 1.0})
	m.Register("reducer", &memo.ScriptEntry{Enable: true, RepeatEvery: 0.02, ReducingPeriod: 0.01, VoltageModifier: 0.4})

	source := &fakeSourceDirect{engaged: false}
	mchsWorker := mchs.New("127.0.0.1", "19999", "test-client")
	r := NewReducerControl("reducer", "relax", m, client, source, mchsWorker)

	r.exec(ctx)

	require.Len(t, targets, 2)
	assert.InDelta(t, 40, targets[0], 1e-6)
	assert.InDelta(t, 100, targets[1], 1e-6)

	relaxEntry, ok := m.Get("relax")
	require.True(t, ok)
	assert.InDelta(t, 100, relaxEntry.TargetVoltage, 1e-6)
	assert.InDelta(t, 1.0, relaxEntry.VoltageModifier, 1e-6)
}
