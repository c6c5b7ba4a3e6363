package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/device/internal/driver"
)

func newTestServer() *Server {
	drv := driver.NewFake(map[string]float64{"ch0": 1000})
	return New(drv, nil)
}

func TestSetVoltageForbiddenWhenUserSetDisabled(t *testing.T) {
	s := newTestServer()
	s.enableUserSet = false

	r := receipt.New("operator", "device_backend", "set_voltage", map[string]interface{}{
		"target_voltage": 0.5,
		"from_user":      true,
	})

	reply := s.dispatch(r)
	assert.Equal(t, receipt.StatusForbidden, reply.Response.StatusCode)
}

func TestSetVoltageFromSupervisorIgnoresUserPermission(t *testing.T) {
	s := newTestServer()
	s.enableUserSet = false

	r := receipt.New("syscheck/relaxcontrol", "device_backend", "set_voltage", map[string]interface{}{
		"target_voltage": 0.4,
		"from_user":      false,
	})

	reply := s.dispatch(r)
	require.True(t, reply.Response.IsOK())

	params := s.dispatch(receipt.New("operator", "device_backend", "params", nil))
	body, ok := params.Response.AsMap()
	require.True(t, ok)
	channels, ok := body["params"].(map[string]interface{})
	require.True(t, ok)
	ch0, ok := channels["ch0"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 400, ch0["VSet"], 1e-6)
}

func TestLastUserVoltageTracksFromUserSetOnly(t *testing.T) {
	s := newTestServer()

	s.dispatch(receipt.New("syscheck/relaxcontrol", "device_backend", "set_voltage", map[string]interface{}{
		"target_voltage": 0.4,
		"from_user":      false,
	}))
	reply := s.dispatch(receipt.New("operator", "device_backend", "last_user_voltage", nil))
	body, _ := reply.Response.AsMap()
	assert.Equal(t, float64(0), body["last_user_voltage"])

	s.dispatch(receipt.New("operator", "device_backend", "set_voltage", map[string]interface{}{
		"target_voltage": 0.8,
		"from_user":      true,
	}))
	reply = s.dispatch(receipt.New("operator", "device_backend", "last_user_voltage", nil))
	body, _ = reply.Response.AsMap()
	assert.Equal(t, 0.8, body["last_user_voltage"])
}

func TestDownResetsLastUserVoltage(t *testing.T) {
	s := newTestServer()
	s.dispatch(receipt.New("operator", "device_backend", "set_voltage", map[string]interface{}{
		"target_voltage": 0.8,
		"from_user":      true,
	}))

	s.dispatch(receipt.New("operator", "device_backend", "down", nil))

	reply := s.dispatch(receipt.New("operator", "device_backend", "last_user_voltage", nil))
	body, _ := reply.Response.AsMap()
	assert.Equal(t, float64(0), body["last_user_voltage"])
}

func TestWrongRouteReturnsNotFound(t *testing.T) {
	s := newTestServer()
	reply := s.dispatch(receipt.New("operator", "device_backend", "no_such_title", nil))
	assert.Equal(t, receipt.StatusNotFound, reply.Response.StatusCode)
}
