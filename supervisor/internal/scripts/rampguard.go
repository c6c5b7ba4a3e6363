package scripts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// RampGuardSender identifies receipts the ramp guard script issues.
const RampGuardSender = "syscheck/rampguard"

// rampGuardMChSKey is the MChS aggregate key this script owns.
const rampGuardMChSKey = "noramping"

var rampGuardParams = []string{"ChStatus"}

// RampGuard is a thin ramping-only probe: it reads ChStatus alone and
// reports !is_ramping on MChS.
type RampGuard struct {
	*Base

	cli  *router.AsyncClient
	mchs *mchs.Worker
}

func NewRampGuard(m *memo.Memo, cli *router.AsyncClient, mchsWorker *mchs.Worker) *RampGuard {
	g := &RampGuard{cli: cli, mchs: mchsWorker}
	g.Base = NewBase("rampguard", m, g.exec, nil, g.onStop)
	return g
}

func (g *RampGuard) onStop() {
	g.mchs.PopKeyState(rampGuardMChSKey)
}

func (g *RampGuard) isRamping() (bool, bool) {
	resp := g.cli.Query(receipts.GetParams(RampGuardSender, rampGuardParams))
	if !resp.Response.IsOK() {
		log.Error("rampguard: no connection with device")
		g.memo.SetLastCheck("rampguard", structures.NewCheckResult(structures.CodeDevbackError))
		return false, false
	}
	g.memo.SetLastCheck("rampguard", structures.NewCheckResult(structures.CodeOK))

	body, _ := resp.Response.AsMap()
	params, _ := body["params"].(map[string]interface{})

	for _, v := range params {
		fields, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		status := int(asFloat(fields["ChStatus"]))
		if structures.IsRamping(status) {
			return true, true
		}
	}
	return false, true
}

func (g *RampGuard) exec(ctx context.Context) {
	ramping, ok := g.isRamping()
	if !ok {
		return
	}
	g.mchs.SetState(rampGuardMChSKey, !ramping)
	g.mchs.SendState()
}
