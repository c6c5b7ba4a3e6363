// Package api implements monitor's receipt dispatch: send_params/
// send_status append telemetry and refresh snapshot files; get_params/
// get_status answer range queries.
package api

import (
	"time"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/monitor/internal/archive"
)

// Server answers monitor receipts against one Archive.
type Server struct {
	store *archive.Archive
	rs    *router.RouterServer
}

// New wires a Server to an Archive and an already-bound RouterServer.
func New(store *archive.Archive, rs *router.RouterServer) *Server {
	return &Server{store: store, rs: rs}
}

// Run blocks, answering receipts until stop is closed.
func (s *Server) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		clientEnvelope, r, err := s.rs.RecvReceipt()
		if err != nil {
			continue
		}
		if r == nil {
			continue
		}

		reply := s.dispatch(r)
		_ = s.rs.SendReceipt(clientEnvelope, reply)
	}
}

func (s *Server) dispatch(r *receipt.Receipt) *receipt.Receipt {
	switch r.Title {
	case "send_params":
		return s.sendParams(r)
	case "send_status":
		return s.sendStatus(r)
	case "get_params":
		return s.getParams(r)
	case "get_status":
		return s.getStatus(r)
	default:
		r.Response = receipt.NewResponse(receipt.StatusNotFound, "this api method is not found")
		return r
	}
}

func (s *Server) sendParams(r *receipt.Receipt) *receipt.Receipt {
	rawParams, _ := r.Params["params"].(map[string]interface{})
	measurementTime, _ := r.Params["measurement_time"].(int64)
	if measurementTime == 0 {
		if ts, ok := r.Params["measurement_time"].(float64); ok {
			measurementTime = int64(ts)
		} else {
			measurementTime = time.Now().Unix()
		}
	}

	rows := make([]archive.ParamRow, 0, len(rawParams))
	for alias, v := range rawParams {
		fields, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		imonRange := asInt(fields["ImonRange"])
		current := asFloat(fields["IMonH"])
		if imonRange != 0 {
			current = asFloat(fields["IMonL"])
		}
		rows = append(rows, archive.ParamRow{
			Channel:         alias,
			VMon:            asFloat(fields["VMon"]),
			Current:         current,
			ChStatus:        asInt(fields["ChStatus"]),
			MeasurementTime: measurementTime,
		})
	}

	if err := s.store.AddParams(rows); err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"inserted": len(rows)})
	return r
}

func (s *Server) sendStatus(r *receipt.Receipt) *receipt.Receipt {
	isOK, _ := r.Params["is_ok"].(bool)
	descr, _ := r.Params["description"].(string)
	ts := asInt64(r.Params["timestamp"])
	if ts == 0 {
		ts = time.Now().Unix()
	}

	row := archive.StatusRow{IsOK: isOK, Descr: descr, Timestamp: ts}
	if err := s.store.AddStatus(row); err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{})
	return r
}

func (s *Server) getParams(r *receipt.Receipt) *receipt.Receipt {
	start := asInt64(r.Params["start_time"])
	end := asInt64(r.Params["end_time"])

	rows, err := s.store.GetParams(start, end)
	if err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"channel":          row.Channel,
			"voltage":          row.VMon,
			"current":          row.Current,
			"ch_status":        row.ChStatus,
			"measurement_time": row.MeasurementTime,
		}
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"rows": out})
	return r
}

func (s *Server) getStatus(r *receipt.Receipt) *receipt.Receipt {
	start := asInt64(r.Params["start_time"])
	end := asInt64(r.Params["end_time"])

	rows, err := s.store.GetStatus(start, end)
	if err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"is_ok":       row.IsOK,
			"description": row.Descr,
			"timestamp":   row.Timestamp,
		}
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"rows": out})
	return r
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

func asInt(v interface{}) int {
	return int(asFloat(v))
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
