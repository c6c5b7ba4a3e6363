package scripts

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/interlocksource"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// ReducerSender identifies receipts the reducer script issues.
const ReducerSender = "syscheck/reducercontrol"

// reducerMChSKey is the MChS aggregate key this script owns.
const reducerMChSKey = "noreducing"

// ReducerControl is a scheduled voltage dip: once per tick, during the
// active phase at the tail of the interval, it borrows relax's
// target_voltage/voltage_modifier slice of the memo for the duration of
// the dip and restores it afterwards. The dip voltage is relax's
// target_voltage times the reducer's own voltage_modifier.
type ReducerControl struct {
	*Base

	name      string
	relaxName string
	cli       *router.AsyncClient
	source    interlocksource.Source
	mchs      *mchs.Worker
}

func NewReducerControl(name, relaxName string, m *memo.Memo, cli *router.AsyncClient, source interlocksource.Source, mchsWorker *mchs.Worker) *ReducerControl {
	r := &ReducerControl{name: name, relaxName: relaxName, cli: cli, source: source, mchs: mchsWorker}
	r.Base = NewBase(name, m, r.exec, nil, r.onStop)
	return r
}

func (r *ReducerControl) onStop() {
	r.mchs.PopKeyState(reducerMChSKey)
}

func (r *ReducerControl) formAnswer(code structures.Codes) {
	r.memo.SetLastCheck(r.name, structures.NewCheckResult(code))
}

func (r *ReducerControl) sendMChS(status bool) {
	r.mchs.SetState(reducerMChSKey, status)
	r.mchs.SendState()
}

func (r *ReducerControl) setVoltage(target float64) bool {
	resp := r.cli.Query(receipts.SetVoltage(ReducerSender, target, false))
	if !resp.Response.IsOK() {
		log.Error("reducer: no connection with device during set_voltage")
		r.formAnswer(structures.CodeDevbackError)
		return false
	}
	r.formAnswer(structures.CodeOK)
	return true
}

func (r *ReducerControl) interlockEngaged() bool {
	return r.source.GetInterlock().CurrentState
}

// exec runs the wait/reduce/restore procedure for one dip. It runs
// within the script loop's own tick, so the sleeps below block this
// script's goroutine only.
func (r *ReducerControl) exec(ctx context.Context) {
	entry, ok := r.memo.Get(r.name)
	if !ok {
		log.WithField("script", r.name).Warn("reducer: memo entry missing")
		return
	}

	waiting := time.Duration(maxFloat(0, entry.RepeatEvery-entry.ReducingPeriod) * float64(time.Second))
	if !sleepOrDone(ctx, waiting) {
		return
	}

	if r.interlockEngaged() {
		r.formAnswer(structures.CodeOK)
		return
	}

	log.Debug("reducer: time to reduce voltage")
	r.sendMChS(false)

	relaxEntry, ok := r.memo.Get(r.relaxName)
	if !ok {
		log.WithField("script", r.relaxName).Warn("reducer: relax memo entry missing")
		return
	}
	savedTarget, savedModifier := relaxEntry.TargetVoltage, relaxEntry.VoltageModifier
	reducedVoltage := savedTarget * entry.VoltageModifier

	r.memo.Mutate(r.relaxName, func(e *memo.ScriptEntry) {
		e.TargetVoltage = reducedVoltage
		e.VoltageModifier = 1
	})
	r.setVoltage(reducedVoltage)

	if !sleepOrDone(ctx, time.Duration(entry.ReducingPeriod*float64(time.Second))) {
		return
	}

	r.memo.Mutate(r.relaxName, func(e *memo.ScriptEntry) {
		e.TargetVoltage = savedTarget
		e.VoltageModifier = savedModifier
	})

	if r.interlockEngaged() {
		log.Debug("reducer: interlock up, no need to restore voltage")
		r.formAnswer(structures.CodeOK)
		r.sendMChS(true)
		return
	}

	log.Debug("reducer: restoring target voltage")
	r.setVoltage(savedTarget)
	if !sleepOrDone(ctx, 30*time.Second) {
		return
	}
	r.sendMChS(true)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// sleepOrDone blocks for d or until ctx is cancelled, returning false in
// the cancelled case so callers can bail out of a multi-step exec.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
