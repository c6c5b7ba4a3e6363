package router

import (
	"strings"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/util"
)

// Broker multiplexes receipts between many clients connected to its
// frontend and a small fixed set of named services connected to its
// backend, preserving ZeroMQ ROUTER identity framing on both legs so a
// reply always finds its way back to the client that asked for it.
// Every frame it forwards is also re-published verbatim on an optional
// monitor socket, grounded on core/mdp/broker.go's Run loop.
type Broker struct {
	frontend *czmq.Sock
	backend  *czmq.Sock
	monitor  *czmq.Sock
	known    map[string]struct{}
}

// NewBroker creates a broker that will bind its frontend and backend to
// the given endpoints once Bind is called. knownServices lists the
// worker identities the broker accepts receipts for; a receipt naming
// any other executor is answered with a 404 without reaching the
// backend.
func NewBroker(knownServices ...string) *Broker {
	known := make(map[string]struct{}, len(knownServices))
	for _, s := range knownServices {
		known[s] = struct{}{}
	}
	return &Broker{known: known}
}

// Bind opens the frontend (client-facing), backend (worker-facing) and,
// if monitorEndpoint is non-empty, a PUB monitor socket.
func (b *Broker) Bind(frontendEndpoint, backendEndpoint, monitorEndpoint string) error {
	frontend, err := czmq.NewRouter(frontendEndpoint)
	if err != nil {
		return &Error{Code: "broker_frontend_bind", Message: frontendEndpoint, Cause: err}
	}
	b.frontend = frontend

	backend, err := czmq.NewRouter(backendEndpoint)
	if err != nil {
		frontend.Destroy()
		return &Error{Code: "broker_backend_bind", Message: backendEndpoint, Cause: err}
	}
	backend.SetOption(czmq.SockSetRcvhwm(BrokerBackendHWM))
	b.backend = backend

	if monitorEndpoint != "" {
		monitor, err := czmq.NewPub(monitorEndpoint)
		if err != nil {
			frontend.Destroy()
			backend.Destroy()
			return &Error{Code: "broker_monitor_bind", Message: monitorEndpoint, Cause: err}
		}
		b.monitor = monitor
	}

	return nil
}

// Close releases every socket the broker holds.
func (b *Broker) Close() {
	for _, sock := range []*czmq.Sock{b.frontend, b.backend, b.monitor} {
		if sock != nil {
			sock.SetOption(czmq.SockSetLinger(0))
			sock.Destroy()
		}
	}
}

// Run polls the frontend and backend forever, forwarding frames between
// them until stop is closed.
func (b *Broker) Run(stop <-chan struct{}) error {
	poller, err := czmq.NewPoller(b.frontend, b.backend)
	if err != nil {
		return &Error{Code: "broker_poller", Cause: err}
	}
	defer poller.Destroy()

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		sock, err := poller.Wait(500)
		if err != nil {
			return &Error{Code: "broker_poll", Cause: err}
		}
		if sock == nil {
			continue
		}

		switch sock {
		case b.frontend:
			b.handleFrontend()
		case b.backend:
			b.handleBackend()
		}
	}
}

// handleFrontend forwards one client->executor receipt to the backend,
// or answers a 404 directly if the named executor is unknown.
func (b *Broker) handleFrontend() {
	frames, err := b.frontend.RecvMessage()
	if err != nil {
		log.WithError(err).Error("broker: frontend recv failed")
		return
	}
	msg := byte2DToStringArray(frames)
	if len(msg) < 3 {
		log.WithField("frames", msg).Warn("broker: malformed frontend message")
		return
	}

	b.publish(msg)

	clientID, rest := util.PopStr(msg)
	body := rest[len(rest)-1]

	r, err := receipt.Decode([]byte(body))
	if err != nil {
		log.WithError(err).Warn("broker: undecodable receipt from client")
		return
	}

	if _, ok := b.known[r.Executor]; !ok {
		reply := r.WithResponse(receipt.StatusNotFound, "unknown executor: "+r.Executor)
		payload, err := receipt.Encode(reply)
		if err != nil {
			log.WithError(err).Error("broker: failed to encode 404 reply")
			return
		}
		if err := b.frontend.SendMessage(stringArrayToByte2D([]string{clientID, "", string(payload)})); err != nil {
			log.WithError(err).Warn("broker: failed to send 404 reply")
		}
		return
	}

	forward := append([]string{r.Executor}, msg...)
	if err := b.backend.SendMessage(stringArrayToByte2D(forward)); err != nil {
		log.WithError(err).WithField("executor", r.Executor).Warn("broker: failed to forward to backend")
	}
}

// handleBackend forwards one executor->client reply to the frontend.
func (b *Broker) handleBackend() {
	frames, err := b.backend.RecvMessage()
	if err != nil {
		log.WithError(err).Error("broker: backend recv failed")
		return
	}
	msg := byte2DToStringArray(frames)
	if len(msg) < 4 {
		log.WithField("frames", msg).Warn("broker: malformed backend message")
		return
	}

	// msg[0] is the worker identity ROUTER prepended on receive; drop it
	// and forward the client envelope that follows.
	_, forward := util.Unwrap(msg)
	b.publish(forward)

	if err := b.frontend.SendMessage(stringArrayToByte2D(forward)); err != nil {
		log.WithError(err).Warn("broker: failed to forward reply to frontend")
	}
}

// publish re-emits a forwarded frame set on the monitor socket, one
// line per frame joined by a unit separator, ignoring failures: monitor
// traffic is diagnostic and must never slow down routing.
func (b *Broker) publish(msg []string) {
	if b.monitor == nil {
		return
	}
	_ = b.monitor.SendFrame([]byte(strings.Join(msg, "\x1f")), czmq.FlagNone)
}
