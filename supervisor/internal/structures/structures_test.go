package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGoodStatusOnlyWhenNoFaultBits(t *testing.T) {
	assert.True(t, IsGoodStatus(1))              // ON only
	assert.True(t, IsGoodStatus(1|(1<<BitRampingUp))) // ramping is not a fault bit
	assert.False(t, IsGoodStatus(1|(1<<3)))       // over-voltage set
}

func TestIsRampingDetectsEitherDirection(t *testing.T) {
	assert.True(t, IsRamping(1|(1<<BitRampingUp)))
	assert.True(t, IsRamping(1|(1<<BitRampingDown)))
	assert.False(t, IsRamping(1))
}

func TestIsRampingDownRequiresBit2Specifically(t *testing.T) {
	assert.True(t, IsRampingDown(1|(1<<BitRampingDown)))
	assert.False(t, IsRampingDown(1|(1<<BitRampingUp)))
}

func TestIsOverOrUnderVoltageOnly(t *testing.T) {
	assert.True(t, IsOverOrUnderVoltageOnly(1|(1<<3)), "over-voltage alone")
	assert.True(t, IsOverOrUnderVoltageOnly(1|(1<<4)), "under-voltage alone")
	assert.True(t, IsOverOrUnderVoltageOnly(1|(1<<3)|(1<<4)), "both together")
	assert.False(t, IsOverOrUnderVoltageOnly(1), "no fault bits is not over/under-voltage")
	assert.False(t, IsOverOrUnderVoltageOnly(1|(1<<5)), "an unrelated fault bit disqualifies it")
	assert.False(t, IsOverOrUnderVoltageOnly(1|(1<<3)|(1<<5)), "mixed with an unrelated fault bit")
}

func TestCurrentAndLimitKeySelectsRangeAndMode(t *testing.T) {
	steady := ChannelParams{IMonH: 1.0, IMonL: 0.002, ImonRange: 0, ChStatus: 1}
	current, key := CurrentAndLimitKey(steady)
	assert.Equal(t, 1.0, current)
	assert.Equal(t, "steady", key)

	ramping := ChannelParams{IMonH: 1.0, IMonL: 0.002, ImonRange: 1, ChStatus: 1 | (1 << BitRampingUp)}
	current, key = CurrentAndLimitKey(ramping)
	assert.Equal(t, 0.002, current)
	assert.Equal(t, "volt_change", key)
}

func TestCodesString(t *testing.T) {
	assert.Equal(t, "OK", CodeOK.String())
	assert.Equal(t, "FAILURE", CodeFailure.String())
}
