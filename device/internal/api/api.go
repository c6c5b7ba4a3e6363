// Package api implements device_backend's receipt dispatch, grounded on
// DeviceBackend/apifactory.py's APIMethods/APIFactory, minus the
// board/conet/link/channel id reconstruction, which lives behind the
// Driver boundary instead.
package api

import (
	"sync"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/device/internal/driver"
)

// Server answers device_backend receipts against one Driver, with its
// own process-local ENABLE_USER_SET/USER_TARGET_VOLTAGE state living
// outside the shared memo entirely.
type Server struct {
	drv driver.Driver
	rs  *router.RouterServer

	mu                sync.Mutex
	enableUserSet     bool
	userTargetVoltage float64
}

// New wires a Server to a driver and an already-bound RouterServer.
// enableUserSet defaults to true.
func New(drv driver.Driver, rs *router.RouterServer) *Server {
	return &Server{rs: rs, drv: drv, enableUserSet: true}
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
	case "status":
		return s.status(r)
	case "params":
		return s.params(r)
	case "set_voltage":
		return s.setVoltage(r)
	case "down":
		return s.down(r)
	case "get_voltage":
		return s.getVoltage(r)
	case "get_user_permission":
		return s.getUserPermission(r)
	case "set_user_permission":
		return s.setUserPermission(r)
	case "last_user_voltage":
		return s.lastUserVoltage(r)
	default:
		return s.wrongRoute(r)
	}
}

func (s *Server) status(r *receipt.Receipt) *receipt.Receipt {
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{})
	return r
}

func (s *Server) params(r *receipt.Receipt) *receipt.Receipt {
	channels, err := s.drv.Params()
	if err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}

	selected, hasSelect := r.Params["select_params"].([]interface{})
	out := make(map[string]interface{}, len(channels))
	for alias, ch := range channels {
		full := map[string]interface{}{
			"VMon":      ch.VMon,
			"VSet":      ch.VSet,
			"VDef":      ch.VDef,
			"IMonH":     ch.IMonH,
			"IMonL":     ch.IMonL,
			"ImonRange": ch.ImonRange,
			"ChStatus":  ch.ChStatus,
		}
		if !hasSelect {
			out[alias] = full
			continue
		}
		filtered := map[string]interface{}{}
		for _, f := range selected {
			if name, ok := f.(string); ok {
				if v, ok := full[name]; ok {
					filtered[name] = v
				}
			}
		}
		out[alias] = filtered
	}

	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"params": out})
	return r
}

func (s *Server) setVoltage(r *receipt.Receipt) *receipt.Receipt {
	target, _ := r.Params["target_voltage"].(float64)
	fromUser, _ := r.Params["from_user"].(bool)

	if fromUser {
		s.mu.Lock()
		allowed := s.enableUserSet
		s.mu.Unlock()
		if !allowed {
			r.Response = receipt.NewResponse(receipt.StatusForbidden, "user voltage set disabled")
			return r
		}
	}

	if err := s.drv.SetVoltage(target); err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}

	if fromUser {
		s.mu.Lock()
		s.userTargetVoltage = target
		s.mu.Unlock()
	}

	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"target_voltage": target})
	return r
}

func (s *Server) down(r *receipt.Receipt) *receipt.Receipt {
	if err := s.drv.Down(); err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}
	s.mu.Lock()
	s.userTargetVoltage = 0
	s.mu.Unlock()
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{})
	return r
}

func (s *Server) getVoltage(r *receipt.Receipt) *receipt.Receipt {
	channels, err := s.drv.Params()
	if err != nil {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, err.Error())
		return r
	}
	var sumVSet, sumVDef float64
	for _, ch := range channels {
		sumVSet += ch.VSet
		sumVDef += ch.VDef
	}
	var multiplier interface{}
	if sumVDef != 0 {
		multiplier = sumVSet / sumVDef
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"multiplier": multiplier})
	return r
}

func (s *Server) getUserPermission(r *receipt.Receipt) *receipt.Receipt {
	s.mu.Lock()
	enable := s.enableUserSet
	s.mu.Unlock()
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"enable_user_set": enable})
	return r
}

func (s *Server) setUserPermission(r *receipt.Receipt) *receipt.Receipt {
	enable, _ := r.Params["enable_user_set"].(bool)
	s.mu.Lock()
	s.enableUserSet = enable
	s.mu.Unlock()
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"enable_user_set": enable})
	return r
}

func (s *Server) lastUserVoltage(r *receipt.Receipt) *receipt.Receipt {
	s.mu.Lock()
	v := s.userTargetVoltage
	s.mu.Unlock()
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"last_user_voltage": v})
	return r
}

func (s *Server) wrongRoute(r *receipt.Receipt) *receipt.Receipt {
	r.Response = receipt.NewResponse(receipt.StatusNotFound, "this api method is not found")
	return r
}
