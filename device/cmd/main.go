// Package main is the device_backend binary: the sole worker wrapping
// the physical HV driver.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	svcconfig "github.com/snd-kmd/caenhv/core/config"
	plog "github.com/snd-kmd/caenhv/core/log"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/core/util"
	"github.com/snd-kmd/caenhv/device/internal/api"
	"github.com/snd-kmd/caenhv/device/internal/driver"
)

func main() {
	bind := flag.String("bind", util.Getenv("CAENHV_DEVICE_BIND", "tcp://*:5561"), "device_backend router endpoint")
	flag.Parse()

	var cfg svcconfig.Config
	if err := svcconfig.LoadConfigWithDefaults("device", &cfg, map[string]interface{}{
		"log.formatter": "text",
		"log.level":     "info",
	}); err != nil {
		log.WithError(err).Warn("device: using default logging config")
	}
	plog.Initialize(cfg.Log)

	drv := driver.NewFake(map[string]float64{"ch0": 1000, "ch1": 1500})

	server, err := router.NewRouterServer(router.ServiceDeviceBackend, *bind)
	if err != nil {
		log.WithError(err).Fatal("device: failed to start router server")
	}
	defer server.Close()

	apiServer := api.New(drv, server)
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- apiServer.Run(stop) }()

	log.WithField("bind", *bind).Info("device_backend starting")

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("device_backend: shutdown signal received")
	close(stop)
	<-done
	log.Info("device_backend: stopped")
}
