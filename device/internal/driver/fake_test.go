package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSetVoltageScalesEveryChannelByVDef(t *testing.T) {
	f := NewFake(map[string]float64{"ch0": 1000, "ch1": 1500})

	require.NoError(t, f.SetVoltage(0.5))

	params, err := f.Params()
	require.NoError(t, err)
	assert.InDelta(t, 500, params["ch0"].VSet, 1e-6)
	assert.InDelta(t, 750, params["ch1"].VSet, 1e-6)
	assert.Equal(t, params["ch0"].VSet, params["ch0"].VMon)
}

func TestFakeDownZeroesEveryChannel(t *testing.T) {
	f := NewFake(map[string]float64{"ch0": 1000})
	require.NoError(t, f.SetVoltage(1.0))

	require.NoError(t, f.Down())

	params, err := f.Params()
	require.NoError(t, err)
	assert.Equal(t, float64(0), params["ch0"].VSet)
}
