// Package mchs implements the MChS UDP ACK/NACK sink: scripts report a
// boolean health flag under their own key, and the aggregate of every
// reported flag decides whether the next datagram is "ACK <client_id>"
// or "NACK <client_id>".
//
// UDP send uses the standard library's net package directly: this is a
// two-line fire-and-forget datagram send with no framing, retry, or
// connection state, a case the richer transports used elsewhere
// (goczmq, gofiber) have no reason to cover.
package mchs

import (
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Worker aggregates per-script ACK/NACK flags and emits the resulting
// datagram on SendState.
type Worker struct {
	udpIP    string
	udpPort  string
	clientID string

	mu    sync.Mutex
	state map[string]bool
}

// New creates a worker addressing the given UDP host/port and client
// identifier.
func New(udpIP, udpPort, clientID string) *Worker {
	return &Worker{
		udpIP:    udpIP,
		udpPort:  udpPort,
		clientID: clientID,
		state:    make(map[string]bool),
	}
}

// SetState records one key's ACK (true) / NACK (false) flag.
func (w *Worker) SetState(key string, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state[key] = ok
}

// PopKeyState removes key from the aggregate, so a disabled script does
// not keep vetoing the overall ACK after it stops.
func (w *Worker) PopKeyState(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.state, key)
}

// IsAck reports whether every currently tracked key is true.
func (w *Worker) IsAck() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ok := range w.state {
		if !ok {
			return false
		}
	}
	return true
}

// SendState emits one UDP datagram reflecting the current aggregate.
func (w *Worker) SendState() {
	ack := w.IsAck()
	verdict := "NACK"
	if ack {
		verdict = "ACK"
	}
	log.WithFields(log.Fields{"verdict": verdict, "client": w.clientID}).Debug("sending MChS state")
	send(w.udpIP, w.udpPort, w.clientID, ack)
}

// send opens a fresh UDP socket per datagram, matching mchswork.py's
// send: a new socket created, used once, and closed.
func send(udpIP, udpPort, clientID string, ack bool) {
	conn, err := net.Dial("udp", net.JoinHostPort(udpIP, udpPort))
	if err != nil {
		log.WithError(err).Warn("mchs: can't reach controller")
		return
	}
	defer conn.Close()

	verdict := "NACK"
	if ack {
		verdict = "ACK"
	}
	payload := fmt.Sprintf("%s %s", verdict, clientID)
	if _, err := conn.Write([]byte(payload)); err != nil {
		log.WithError(err).Warn("mchs: send failed")
	}
}
