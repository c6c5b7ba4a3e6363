// Package main is the broker binary: the identity-preserving
// router/dealer multiplexer every client and worker service connects
// through.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/broker/internal/state"
	svcconfig "github.com/snd-kmd/caenhv/core/config"
	plog "github.com/snd-kmd/caenhv/core/log"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/core/util"
)

func main() {
	frontend := flag.String("frontend", util.Getenv("CAENHV_BROKER_FRONTEND", "tcp://*:5559"), "client-facing router endpoint")
	backend := flag.String("backend", util.Getenv("CAENHV_BROKER_BACKEND", "tcp://*:5560"), "worker-facing router endpoint")
	monitor := flag.String("monitor", util.Getenv("CAENHV_BROKER_MONITOR", "tcp://*:5563"), "diagnostic pub endpoint, empty to disable")
	flag.Parse()

	var cfg svcconfig.Config
	if err := svcconfig.LoadConfigWithDefaults("broker", &cfg, map[string]interface{}{
		"log.formatter": "text",
		"log.level":     "info",
	}); err != nil {
		log.WithError(err).Warn("broker: using default logging config")
	}
	plog.Initialize(cfg.Log)

	st := state.New()

	b := router.NewBroker(router.ServiceDeviceBackend, router.ServiceMonitor, router.ServiceSystemCheck)
	if err := b.Bind(*frontend, *backend, *monitor); err != nil {
		log.WithError(err).Fatal("broker: failed to bind")
	}
	defer b.Close()

	st.SetStatus("running")
	log.WithFields(log.Fields{"frontend": *frontend, "backend": *backend}).Info("broker starting")

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- b.Run(stop) }()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("broker: shutdown signal received")
	st.SetStatus("stopping")
	close(stop)

	if err := <-done; err != nil {
		st.SetLastError(err)
		log.WithError(err).Error("broker: run loop exited with error")
		os.Exit(1)
	}
	st.SetStatus("stopped")
	log.Info("broker: stopped")
}
