package scripts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/interlocksource"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
)

// InterlockSender identifies receipts the interlock script issues.
const InterlockSender = "syscheck/ilockcontrol"

// interlockMChSKey is the MChS aggregate key this script owns.
const interlockMChSKey = "nointerlock"

// InterlockControl polls the external interlock source and reflects its
// state on MChS. A plain poll-and-report probe; the voltage reaction to
// an engaged interlock lives in RelaxControl.
type InterlockControl struct {
	*Base

	cli    *router.AsyncClient
	source interlocksource.Source
	mchs   *mchs.Worker
}

func NewInterlockControl(m *memo.Memo, cli *router.AsyncClient, source interlocksource.Source, mchsWorker *mchs.Worker) *InterlockControl {
	i := &InterlockControl{cli: cli, source: source, mchs: mchsWorker}
	i.Base = NewBase("interlock", m, i.exec, i.onStart, i.onStop)
	return i
}

func (i *InterlockControl) onStart() {
	log.Info("interlock: start interlock control, disable user voltage set")
	resp := i.cli.Query(receipts.SetUserPermission(InterlockSender, false))
	if !resp.Response.IsOK() {
		log.Warn("interlock: failed to disable user permission on start")
	}
}

func (i *InterlockControl) onStop() {
	log.Info("interlock: stop interlock control, enable user voltage set")
	resp := i.cli.Query(receipts.SetUserPermission(InterlockSender, true))
	if !resp.Response.IsOK() {
		log.Warn("interlock: failed to enable user permission on stop")
	}
	i.mchs.PopKeyState(interlockMChSKey)
}

func (i *InterlockControl) exec(ctx context.Context) {
	state := i.source.GetInterlock()
	i.mchs.SetState(interlockMChSKey, !state.CurrentState)
	i.mchs.SendState()
}
