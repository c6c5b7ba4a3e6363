// Package main is the façade binary: the HTTP boundary operators and
// the control-room UI use, proxying actions to the broker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	svcconfig "github.com/snd-kmd/caenhv/core/config"
	plog "github.com/snd-kmd/caenhv/core/log"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/core/util"
	"github.com/snd-kmd/caenhv/facade/internal/handlers"
	"github.com/snd-kmd/caenhv/facade/internal/history"
)

func main() {
	listenAddr := flag.String("listen", util.Getenv("CAENHV_FACADE_LISTEN", ":8080"), "facade HTTP listen address")
	deviceEndpoint := flag.String("device", util.Getenv("CAENHV_FACADE_BROKER", "tcp://127.0.0.1:5559"), "broker frontend endpoint")
	historyDSN := flag.String("history-dsn", util.Getenv("CAENHV_FACADE_HISTORY_DSN", ""), "postgres DSN for the interlock history mirror, empty to disable")
	flag.Parse()

	var cfg svcconfig.Config
	if err := svcconfig.LoadConfigWithDefaults("facade", &cfg, map[string]interface{}{
		"log.formatter": "text",
		"log.level":     "info",
	}); err != nil {
		log.WithError(err).Warn("facade: using default logging config")
	}
	plog.Initialize(cfg.Log)

	cli := router.NewAsyncClient(map[string]string{
		router.ServiceDeviceBackend: *deviceEndpoint,
		router.ServiceMonitor:       *deviceEndpoint,
		router.ServiceSystemCheck:   *deviceEndpoint,
	})

	var mirror *history.Mirror
	if *historyDSN != "" {
		m, err := history.Open(context.Background(), *historyDSN)
		if err != nil {
			log.WithError(err).Warn("facade: interlock history mirror disabled")
		} else {
			mirror = m
			defer mirror.Close()
		}
	}

	h := handlers.New(cli, mirror)

	app := fiber.New()

	app.Post("/api/voltage", h.SetVoltage)
	app.Get("/api/status", h.Status)
	app.Post("/api/scripts/enable", h.EnableScript)
	app.Post("/api/scripts/disable", h.DisableScript)
	app.Get("/api/interlock/history", h.InterlockHistory)

	app.Use("/ws/telemetry", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(h.Telemetry))

	go func() {
		if err := app.Listen(*listenAddr); err != nil {
			log.WithError(err).Error("facade: listen failed")
		}
	}()

	log.WithField("listen", *listenAddr).Info("facade starting")

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("facade: shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	log.Info("facade: stopped")
}
