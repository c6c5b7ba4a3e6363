package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStartsInStartingStatus(t *testing.T) {
	s := New()
	assert.Equal(t, "starting", s.Status())
	assert.Equal(t, 0, s.ErrorCount())
	assert.Nil(t, s.LastError())
}

func TestSetStatusUpdatesStatus(t *testing.T) {
	s := New()
	s.SetStatus("running")
	assert.Equal(t, "running", s.Status())
}

func TestSetLastErrorIncrementsCount(t *testing.T) {
	s := New()
	s.SetLastError(errors.New("bind failed"))
	s.SetLastError(errors.New("bind failed again"))

	assert.Equal(t, 2, s.ErrorCount())
	assert.EqualError(t, s.LastError(), "bind failed again")
}
