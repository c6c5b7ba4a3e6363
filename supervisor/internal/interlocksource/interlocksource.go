// Package interlocksource implements the external interlock signal
// source: a polymorphic reader over three URI schemes (postgresql://,
// tcp://, fake://), always fail-safe on error.
package interlocksource

import (
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// Source reads the current interlock state. Every implementation must
// return engaged=true on any internal error: the supervisor prefers
// false alarms to silent danger.
type Source interface {
	GetInterlock() structures.InterlockState
	Close()
}

// New opens a Source for the given URI, dispatching on scheme.
func New(uri string) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("interlocksource: invalid uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "postgresql":
		return newPostgresSource(u)
	case "tcp":
		return newTCPSource(u)
	case "fake":
		return newFakeSource(u)
	default:
		return nil, fmt.Errorf("interlocksource: unknown scheme %q", u.Scheme)
	}
}

// failSafe is the common "any error -> engaged=true" fallback every
// scheme returns, logged once at the call site.
func failSafe(err error) structures.InterlockState {
	log.WithError(err).Warn("interlocksource: read failed, failing safe to engaged")
	return structures.NewInterlockState(true)
}
