package scripts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/receipts"
	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// LoaderSender identifies receipts the loader script issues.
const LoaderSender = "syscheck/loader"

var loaderParams = []string{"VMon", "IMonH", "IMonL", "ChStatus", "ImonRange"}

// NewLoaderControl builds the loader script: pull device parameters,
// ship them to monitor, record the outcome. Grounded on
// caen_tools/SystemCheck/scripts/loader.py's LoaderControl.
func NewLoaderControl(m *memo.Memo, cli *router.AsyncClient) Script {
	base := NewBase("loader", m, loaderExec(m, cli), nil, nil)
	return base
}

func loaderExec(m *memo.Memo, cli *router.AsyncClient) ExecFunc {
	return func(ctx context.Context) {
		devpars := cli.Query(receipts.GetParams(LoaderSender, loaderParams))
		if !devpars.Response.IsOK() {
			log.Warn("loader: no connection with device_backend")
			m.SetLastCheck("loader", structures.NewCheckResult(structures.CodeDevbackError))
			return
		}

		body, _ := devpars.Response.AsMap()
		params, _ := body["params"].(map[string]interface{})

		moncheck := cli.Query(receipts.SendParams(LoaderSender, params, devpars.Timestamp))
		if !moncheck.Response.IsOK() {
			log.Warn("loader: no connection with monitor")
			m.SetLastCheck("loader", structures.NewCheckResult(structures.CodeMonitorError))
			return
		}

		m.SetLastCheck("loader", structures.NewCheckResult(structures.CodeOK))
	}
}
