// Package log configures the shared logrus logger for every caenhv service.
package log

import (
	"github.com/sirupsen/logrus"
	"github.com/yukitsune/lokirus"

	"github.com/snd-kmd/caenhv/core/config"
)

// Initialize configures the standard logger's formatter, level and optional
// Loki hook from a LogConfig. Safe to call once at process start.
func Initialize(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	switch cfg.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Loki.Address == "" {
		return
	}

	opts := lokirus.NewLokiHookOptions().
		WithLevelMap(lokirus.LevelMap{
			logrus.PanicLevel: "critical",
			logrus.FatalLevel: "critical",
			logrus.ErrorLevel: "error",
			logrus.WarnLevel:  "warning",
			logrus.InfoLevel:  "info",
			logrus.DebugLevel: "debug",
			logrus.TraceLevel: "trace",
		}).
		WithStaticLabels(lokirus.Labels(cfg.Loki.Labels))

	hook := lokirus.NewLokiHookWithOpts(cfg.Loki.Address, opts,
		logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel,
		logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel)

	logrus.AddHook(hook)
}
