// Package main is the monitor binary: the telemetry archive worker.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"

	svcconfig "github.com/snd-kmd/caenhv/core/config"
	plog "github.com/snd-kmd/caenhv/core/log"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/core/util"
	"github.com/snd-kmd/caenhv/monitor/internal/api"
	"github.com/snd-kmd/caenhv/monitor/internal/archive"
)

func main() {
	bind := flag.String("bind", util.Getenv("CAENHV_MONITOR_BIND", "tcp://*:5562"), "monitor router endpoint")
	dbPath := flag.String("db", util.Getenv("CAENHV_MONITOR_DB", "monitor.sqlite"), "sqlite database path")
	paramFile := flag.String("param-file", "param_snapshot.json", "param snapshot file path")
	statusFile := flag.String("status-file", "status_snapshot.json", "status snapshot file path")
	rotateEvery := flag.Int("rotate-every", 1000, "inserts between 24h retention sweeps")
	flag.Parse()

	var cfg svcconfig.Config
	if err := svcconfig.LoadConfigWithDefaults("monitor", &cfg, map[string]interface{}{
		"log.formatter": "text",
		"log.level":     "info",
	}); err != nil {
		log.WithError(err).Warn("monitor: using default logging config")
	}
	plog.Initialize(cfg.Log)

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("monitor: failed to open database")
	}

	store, err := archive.Open(db, *paramFile, *statusFile, *rotateEvery)
	if err != nil {
		log.WithError(err).Fatal("monitor: failed to open archive")
	}

	server, err := router.NewRouterServer(router.ServiceMonitor, *bind)
	if err != nil {
		log.WithError(err).Fatal("monitor: failed to start router server")
	}
	defer server.Close()

	apiServer := api.New(store, server)
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- apiServer.Run(stop) }()

	log.WithField("bind", *bind).Info("monitor starting")

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("monitor: shutdown signal received")
	close(stop)
	<-done
	log.Info("monitor: stopped")
}
