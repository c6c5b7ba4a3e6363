// Package api implements the supervisor's own receipt server: it
// answers receipts about supervisor state as the `system_check`
// identity, the counterpart to device_backend and monitor, so the
// façade and operators can read status and toggle scripts.
//
// Grounded on caen_tools/SystemCheck/api/{methods,factory}.py's
// APIMethods/APIFactory, title-dispatch translated to a Go switch.
package api

import (
	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
)

// Server answers system_check receipts against a shared memo.
type Server struct {
	identity string
	memo     *memo.Memo
	rs       *router.RouterServer
}

// New wires a Server to an already-bound RouterServer.
func New(m *memo.Memo, rs *router.RouterServer) *Server {
	return &Server{identity: rs.Identity(), memo: m, rs: rs}
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
			log.WithError(err).Warn("supervisor api: recv failed")
			continue
		}
		if r == nil {
			continue
		}

		reply := s.dispatch(r)
		if err := s.rs.SendReceipt(clientEnvelope, reply); err != nil {
			log.WithError(err).Warn("supervisor api: send failed")
		}
	}
}

func (s *Server) dispatch(r *receipt.Receipt) *receipt.Receipt {
	switch r.Title {
	case "status":
		return s.status(r)
	case "status_autopilot":
		return s.statusAutopilot(r)
	case "set_autopilot":
		return s.setAutopilot(r)
	case "enable_script":
		return s.setEnable(r, true)
	case "disable_script":
		return s.setEnable(r, false)
	default:
		return s.wrongRoute(r)
	}
}

// status reports every script's last_check/enable snapshot.
func (s *Server) status(r *receipt.Receipt) *receipt.Receipt {
	scripts := map[string]interface{}{}
	for _, name := range s.memo.Names() {
		entry, ok := s.memo.Get(name)
		if !ok {
			continue
		}
		scripts[name] = map[string]interface{}{
			"enable":       entry.Enable,
			"repeat_every": entry.RepeatEvery,
			"last_check":   entry.LastCheck,
		}
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"scripts": scripts})
	return r
}

// statusAutopilot reports relax's enable flag, the interlock-follow
// reactor's on/off state per the Python source's status_autopilot.
func (s *Server) statusAutopilot(r *receipt.Receipt) *receipt.Receipt {
	name, _ := r.Params["script"].(string)
	if name == "" {
		name = "relax"
	}
	entry, ok := s.memo.Get(name)
	if !ok {
		r.Response = receipt.NewResponse(receipt.StatusNotFound, "unknown script")
		return r
	}
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{
		"interlock_follow": entry.Enable,
		"target_voltage":   entry.TargetVoltage,
	})
	return r
}

// setAutopilot flips a script's enable flag and, for relax, its target
// voltage, mirroring set_ilock_follow.
func (s *Server) setAutopilot(r *receipt.Receipt) *receipt.Receipt {
	name, _ := r.Params["script"].(string)
	if name == "" {
		name = "relax"
	}
	enable, _ := r.Params["value"].(bool)

	if target, ok := r.Params["target_voltage"].(float64); ok {
		s.memo.Mutate(name, func(e *memo.ScriptEntry) {
			e.TargetVoltage = target
		})
	}
	s.memo.SetEnable(name, enable)

	entry, _ := s.memo.Get(name)
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{
		"interlock_follow": entry.Enable,
		"target_voltage":   entry.TargetVoltage,
	})
	return r
}

func (s *Server) setEnable(r *receipt.Receipt, enable bool) *receipt.Receipt {
	name, ok := r.Params["script"].(string)
	if !ok || name == "" {
		r.Response = receipt.NewResponse(receipt.StatusApplicationFail, "missing script name")
		return r
	}
	if _, ok := s.memo.Get(name); !ok {
		r.Response = receipt.NewResponse(receipt.StatusNotFound, "unknown script")
		return r
	}
	s.memo.SetEnable(name, enable)
	r.Response = receipt.NewResponse(receipt.StatusOK, map[string]interface{}{"enable": enable})
	return r
}

func (s *Server) wrongRoute(r *receipt.Receipt) *receipt.Receipt {
	r.Response = receipt.NewResponse(receipt.StatusNotFound, "this api method is not found")
	return r
}
