// Package main is the supervisor binary: a single process that hosts
// both the script-engine worker loop and the system_check API server as
// two goroutines sharing one memo.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	svcconfig "github.com/snd-kmd/caenhv/core/config"
	plog "github.com/snd-kmd/caenhv/core/log"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/core/util"
	"github.com/snd-kmd/caenhv/supervisor/internal/api"
	"github.com/snd-kmd/caenhv/supervisor/internal/config"
	"github.com/snd-kmd/caenhv/supervisor/internal/interlocksource"
	"github.com/snd-kmd/caenhv/supervisor/internal/mchs"
	"github.com/snd-kmd/caenhv/supervisor/internal/memo"
	"github.com/snd-kmd/caenhv/supervisor/internal/scripts"
)

func main() {
	confPath := flag.String("config", util.Getenv("CAENHV_SUPERVISOR_CONFIG", "supervisor.ini"), "path to the supervisor INI control-plane config")
	flag.Parse()

	var logCfg svcconfig.Config
	if err := svcconfig.LoadConfigWithDefaults("supervisor", &logCfg, map[string]interface{}{
		"log.formatter": "text",
		"log.level":     "info",
	}); err != nil {
		log.WithError(err).Warn("supervisor: using default logging config")
	}
	plog.Initialize(logCfg.Log)

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.WithError(err).Fatal("supervisor: failed to load control-plane config")
	}

	maxCurrents, tripTimes, err := config.LoadHealthSideConfig(cfg.MaxCurrentFile, cfg.TripTimeFile)
	if err != nil {
		log.WithError(err).Fatal("supervisor: failed to load health side-config")
	}

	source, err := interlocksource.New(cfg.InterlockSourceURI)
	if err != nil {
		log.WithError(err).Fatal("supervisor: failed to open interlock source")
	}
	defer source.Close()

	m := memo.New()
	m.SetMChS(memo.MChSConfig{UDPIP: cfg.MChS.UDPIP, UDPPort: cfg.MChS.UDPPort, ClientID: cfg.MChS.ClientID})
	mchsWorker := mchs.New(cfg.MChS.UDPIP, cfg.MChS.UDPPort, cfg.MChS.ClientID)

	cli := router.NewAsyncClient(map[string]string{
		router.ServiceDeviceBackend: cfg.Device.Address,
		router.ServiceMonitor:       cfg.Monitor.Address,
	})
	cli.SetDefaultTimeout(1 * time.Second)

	registerScript := func(name string, sc config.ScriptConfig) {
		m.Register(name, &memo.ScriptEntry{
			Enable:          sc.Enable,
			RepeatEvery:     sc.RepeatEvery,
			TargetVoltage:   sc.TargetVoltage,
			VoltageModifier: sc.VoltageModifier,
			ReducingPeriod:  sc.ReducingPeriod,
			LowVoltageMlt:   sc.LowVoltageMlt,
		})
	}

	registerScript("loader", cfg.Loader)
	registerScript("health", cfg.Health)
	registerScript("interlock", cfg.Interlock)
	registerScript("relax", cfg.Relax)
	registerScript("reducer", cfg.Reducer)
	registerScript("rampguard", cfg.RampGuard)

	loader := scripts.NewLoaderControl(m, cli)
	relax := scripts.NewRelaxControl("relax", m, cli, source)
	reducer := scripts.NewReducerControl("reducer", "relax", m, cli, source, mchsWorker)
	rampGuard := scripts.NewRampGuard(m, cli, mchsWorker)
	interlockCtl := scripts.NewInterlockControl(m, cli, source, mchsWorker)
	health := scripts.NewHealthControl(m, cli, mchsWorker, scripts.MaxCurrentLimits(maxCurrents), tripTimes, cfg.Health.LowVoltageMlt, []scripts.Script{loader, relax, reducer, rampGuard, interlockCtl})

	managed := []scripts.Script{loader, health, interlockCtl, relax, reducer, rampGuard}
	manager := scripts.NewManager(m, cfg.Check.RepeatEvery, managed)

	server, err := router.NewRouterServer(router.ServiceSystemCheck, cfg.WS.Bind)
	if err != nil {
		log.WithError(err).Fatal("supervisor: failed to start api server")
	}
	defer server.Close()
	apiServer := api.New(m, server)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	g.Go(func() error {
		manager.Start()
		<-gctx.Done()
		manager.WaitGrace(5 * time.Second)
		return nil
	})

	g.Go(func() error {
		return apiServer.Run(stop)
	})

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("supervisor: shutdown signal received")
	close(stop)
	cancel()

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("supervisor: shutdown error")
		os.Exit(1)
	}
	log.Info("supervisor: stopped")
}
