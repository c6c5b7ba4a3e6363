package archive

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestArchive(t *testing.T, rotateEvery int) *Archive {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	dir := t.TempDir()
	a, err := Open(db, filepath.Join(dir, "params.json"), filepath.Join(dir, "status.json"), rotateEvery)
	require.NoError(t, err)
	return a
}

func TestAddAndGetParamsRoundTrip(t *testing.T) {
	a := newTestArchive(t, 0)

	rows := []ParamRow{
		{Channel: "ch0", VMon: 1000, Current: 1.5, ChStatus: 1, MeasurementTime: 100},
		{Channel: "ch1", VMon: 1500, Current: 2.0, ChStatus: 1, MeasurementTime: 100},
	}
	require.NoError(t, a.AddParams(rows))

	got, err := a.GetParams(0, 200)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetParamsExcludesOutsideRange(t *testing.T) {
	a := newTestArchive(t, 0)

	require.NoError(t, a.AddParams([]ParamRow{{Channel: "ch0", VMon: 1000, MeasurementTime: 50}}))
	require.NoError(t, a.AddParams([]ParamRow{{Channel: "ch0", VMon: 1000, MeasurementTime: 500}}))

	got, err := a.GetParams(0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].MeasurementTime)
}

func TestAddAndGetStatusRoundTrip(t *testing.T) {
	a := newTestArchive(t, 0)

	require.NoError(t, a.AddStatus(StatusRow{IsOK: true, Descr: "nominal", Timestamp: 10}))
	require.NoError(t, a.AddStatus(StatusRow{IsOK: false, Descr: "over current", Timestamp: 20}))

	got, err := a.GetStatus(0, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(20), got[0].Timestamp, "newest first")
}
