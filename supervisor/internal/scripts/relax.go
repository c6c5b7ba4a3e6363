package scripts

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/interlocksource"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// RelaxSender identifies receipts the relax script issues.
const RelaxSender = "syscheck/relaxcontrol"

const voltageCloseTol = 1e-4

// RelaxControl is the interlock reactor: while the interlock is engaged
// it holds the channel at target_voltage * voltage_modifier, and
// restores target_voltage once it clears. target_voltage/
// voltage_modifier live in the memo so ReducerControl can borrow and
// restore them across its dip.
type RelaxControl struct {
	*Base

	name   string
	cli    *router.AsyncClient
	source interlocksource.Source
}

func NewRelaxControl(name string, m *memo.Memo, cli *router.AsyncClient, source interlocksource.Source) *RelaxControl {
	r := &RelaxControl{name: name, cli: cli, source: source}
	r.Base = NewBase(name, m, r.exec, nil, nil)
	return r
}

func (r *RelaxControl) formAnswer(code structures.Codes) {
	r.memo.SetLastCheck(r.name, structures.NewCheckResult(code))
}

func (r *RelaxControl) setVoltage(target float64) {
	resp := r.cli.Query(receipts.SetVoltage(RelaxSender, target, false))
	if !resp.Response.IsOK() {
		log.Error("relax: no connection with device during set_voltage")
		r.formAnswer(structures.CodeDevbackError)
		return
	}
	r.formAnswer(structures.CodeOK)
}

func (r *RelaxControl) exec(ctx context.Context) {
	entry, ok := r.memo.Get(r.name)
	if !ok {
		log.WithField("script", r.name).Warn("relax: memo entry missing")
		return
	}
	targetVoltage := entry.TargetVoltage
	voltageModifier := entry.VoltageModifier
	reduced := targetVoltage * voltageModifier

	interlock := r.source.GetInterlock()

	resp := r.cli.Query(receipts.GetVoltage(RelaxSender))
	if !resp.Response.IsOK() {
		log.Error("relax: no connection with device during get_voltage")
		r.formAnswer(structures.CodeDevbackError)
		return
	}
	body, _ := resp.Response.AsMap()
	current, _ := body["multiplier"].(float64)

	switch {
	case interlock.CurrentState && math.Abs(current-reduced) > voltageCloseTol:
		log.WithField("reduced", reduced).Info("relax: interlock engaged, setting reduced voltage")
		r.setVoltage(reduced)
	case !interlock.CurrentState && math.Abs(current-targetVoltage) > voltageCloseTol:
		log.WithField("target", targetVoltage).Info("relax: interlock clear, restoring target voltage")
		r.setVoltage(targetVoltage)
	default:
		r.formAnswer(structures.CodeOK)
	}
}
