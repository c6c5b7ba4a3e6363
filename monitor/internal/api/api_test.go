package api

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/monitor/internal/archive"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := archive.Open(db, filepath.Join(dir, "params.json"), filepath.Join(dir, "status.json"), 0)
	require.NoError(t, err)

	return New(store, nil)
}

func TestSendParamsPicksCurrentByImonRange(t *testing.T) {
	s := newTestServer(t)

	r := receipt.New("device_backend", "monitor", "send_params", map[string]interface{}{
		"measurement_time": float64(1000),
		"params": map[string]interface{}{
			"ch0": map[string]interface{}{"VMon": 990.0, "IMonH": 1.5, "IMonL": 0.002, "ImonRange": 0.0, "ChStatus": 1.0},
			"ch1": map[string]interface{}{"VMon": 1490.0, "IMonH": 2.0, "IMonL": 0.5, "ImonRange": 1.0, "ChStatus": 1.0},
		},
	})

	reply := s.dispatch(r)
	require.True(t, reply.Response.IsOK())

	got, err := s.store.GetParams(0, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byChannel := map[string]archive.ParamRow{}
	for _, row := range got {
		byChannel[row.Channel] = row
	}
	assert.InDelta(t, 1.5, byChannel["ch0"].Current, 1e-6, "ImonRange 0 selects IMonH")
	assert.InDelta(t, 0.5, byChannel["ch1"].Current, 1e-6, "ImonRange 1 selects IMonL")
}

func TestGetParamsRespectsTimeWindow(t *testing.T) {
	s := newTestServer(t)

	s.dispatch(receipt.New("device_backend", "monitor", "send_params", map[string]interface{}{
		"measurement_time": float64(100),
		"params":           map[string]interface{}{"ch0": map[string]interface{}{"VMon": 1000.0}},
	}))
	s.dispatch(receipt.New("device_backend", "monitor", "send_params", map[string]interface{}{
		"measurement_time": float64(9000),
		"params":           map[string]interface{}{"ch0": map[string]interface{}{"VMon": 1000.0}},
	}))

	reply := s.dispatch(receipt.New("facade", "monitor", "get_params", map[string]interface{}{
		"start_time": float64(0),
		"end_time":   float64(1000),
	}))

	body, ok := reply.Response.AsMap()
	require.True(t, ok)
	rows, ok := body["rows"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestSendAndGetStatusRoundTrip(t *testing.T) {
	s := newTestServer(t)

	s.dispatch(receipt.New("supervisor", "monitor", "send_status", map[string]interface{}{
		"is_ok":       false,
		"description": "over current on ch0",
		"timestamp":   float64(42),
	}))

	reply := s.dispatch(receipt.New("facade", "monitor", "get_status", map[string]interface{}{
		"start_time": float64(0),
		"end_time":   float64(100),
	}))

	body, ok := reply.Response.AsMap()
	require.True(t, ok)
	rows, ok := body["rows"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, false, rows[0]["is_ok"])
}

func TestUnknownTitleReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	reply := s.dispatch(receipt.New("facade", "monitor", "no_such_title", nil))
	assert.Equal(t, receipt.StatusNotFound, reply.Response.StatusCode)
}
