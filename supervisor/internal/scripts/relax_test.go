package scripts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

func newRelaxTestBroker(t *testing.T, handle func(r *receipt.Receipt) *receipt.Receipt) (*router.AsyncClient, func()) {
	t.Helper()

	frontendEP := "inproc://relax-test-frontend"
	backendEP := "inproc://relax-test-backend"

	b := router.NewBroker(router.ServiceDeviceBackend)
	require.NoError(t, b.Bind(frontendEP, backendEP, ""))

	stop := make(chan struct{})
	go func() { _ = b.Run(stop) }()

	server, err := router.NewRouterServer(router.ServiceDeviceBackend, backendEP)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			envelope, r, err := server.RecvReceipt()
			if err != nil {
				return
			}
			reply := handle(r)
			if err := server.SendReceipt(envelope, reply); err != nil {
				return
			}
		}
	}()

	client := router.NewAsyncClient(map[string]string{router.ServiceDeviceBackend: frontendEP})
	client.SetDefaultTimeout(2 * time.Second)

	cleanup := func() {
		close(stop)
		server.Close()
		b.Close()
	}

	return client, cleanup
}

// target_voltage=100, voltage_modifier=0.4. Device reports
// multiplier=1.0, interlock engaged, so relax reduces to 40. Then the
// device reports 0.4 and interlock clears, so relax restores to 100.
func TestRelaxReactsToInterlockEngagedAndCleared(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	var lastTarget float64
	currentMultiplier := 1.0

	client, cleanup := newRelaxTestBroker(t, func(r *receipt.Receipt) *receipt.Receipt {
		switch r.Title {
		case "get_voltage":
			return r.WithResponse(receipt.StatusOK, map[string]interface{}{"multiplier": currentMultiplier})
		case "set_voltage":
			lastTarget, _ = r.Params["target_voltage"].(float64)
			currentMultiplier = lastTarget / 100
			return r.WithResponse(receipt.StatusOK, nil)
		default:
			return r.WithResponse(receipt.StatusNotFound, "unexpected")
		}
	})
	defer cleanup()

	m := memo.New()
	m.Register("relax", &memo.ScriptEntry{Enable: true, TargetVoltage: 100, VoltageModifier: 0.4})

	source := &fakeSourceDirect{engaged: true}
	r := NewRelaxControl("relax", m, client, source)

	r.exec(nil)
	assert.InDelta(t, 40, lastTarget, 1e-6)

	source.engaged = false
	r.exec(nil)
	assert.InDelta(t, 100, lastTarget, 1e-6)
}

// fakeSourceDirect implements interlocksource.Source directly, bypassing
// the URI-dispatched constructors in package interlocksource.
type fakeSourceDirect struct {
	engaged bool
}

func (f *fakeSourceDirect) GetInterlock() structures.InterlockState {
	return structures.NewInterlockState(f.engaged)
}

func (f *fakeSourceDirect) Close() {}
