package router

import (
	"strings"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/snd-kmd/caenhv/core/receipt"
)

// RouterServer is the worker-side half of the transport: a service binds
// or connects a ROUTER socket to the broker's backend, receives receipts
// addressed to it, and replies without needing to know the originating
// client's address beyond what the socket hands back automatically.
//
// Grounded on core/mdp/worker.go's DEALER-with-identity wrapper, adapted
// to a ROUTER socket per Python connection/server.py's RouterServer,
// since this substrate's workers connect directly to a broker backend
// that already preserves the DEALER identity frame for them.
type RouterServer struct {
	identity string
	sock     *czmq.Sock
}

// NewRouterServer creates a server identified as the given service name.
// If endpoint contains "*" the socket binds, otherwise it connects. The
// identity and socket options are set before the bind/connect, since
// ZeroMQ applies the identity only to connections made after it is set.
func NewRouterServer(identity, endpoint string) (*RouterServer, error) {
	sock, err := czmq.NewSock(czmq.Router)
	if err != nil {
		return nil, &Error{Code: "server_bind", Message: endpoint, Cause: err}
	}

	sock.SetOption(czmq.SockSetIdentity(identity))
	sock.SetOption(czmq.SockSetRcvhwm(ServerRecvHWM))
	sock.SetOption(czmq.SockSetSndtimeo(int(ServerSendTimeout.Milliseconds())))

	if strings.Contains(endpoint, "*") {
		_, err = sock.Bind(endpoint)
	} else {
		err = sock.Connect(endpoint)
	}
	if err != nil {
		sock.Destroy()
		return nil, &Error{Code: "server_bind", Message: endpoint, Cause: err}
	}

	return &RouterServer{identity: identity, sock: sock}, nil
}

// Identity returns the service name this server registered under.
func (s *RouterServer) Identity() string { return s.identity }

// Close releases the underlying socket.
func (s *RouterServer) Close() {
	if s.sock != nil {
		s.sock.SetOption(czmq.SockSetLinger(0))
		s.sock.Destroy()
	}
}

// RecvReceipt blocks until a receipt arrives, returning the opaque
// client envelope (the frames preceding the empty delimiter) needed to
// route the eventual reply back with SendReceipt.
func (s *RouterServer) RecvReceipt() (clientEnvelope []string, r *receipt.Receipt, err error) {
	frames, err := s.sock.RecvMessage()
	if err != nil {
		return nil, nil, &Error{Code: "server_recv", Message: s.identity, Cause: err}
	}

	msg := byte2DToStringArray(frames)

	var envelope []string
	var body string
	for i, frame := range msg {
		if frame == "" {
			envelope = msg[:i]
			body = strings.Join(msg[i+1:], "")
			break
		}
	}
	if envelope == nil {
		return nil, nil, &Error{Code: "server_malformed", Message: "missing delimiter frame"}
	}

	r, err = receipt.Decode([]byte(body))
	if err != nil {
		return envelope, nil, &Error{Code: "server_decode", Message: s.identity, Cause: err}
	}

	return envelope, r, nil
}

// SendReceipt replies to the client identified by envelope (as returned
// by a prior RecvReceipt) with r. If the socket can't accept the reply
// within ServerSendTimeout the send is dropped and an error is returned;
// the caller already holds the authoritative result, so a slow client
// loses the reply, not the work.
func (s *RouterServer) SendReceipt(clientEnvelope []string, r *receipt.Receipt) error {
	payload, err := receipt.Encode(r)
	if err != nil {
		return &Error{Code: "server_encode", Message: s.identity, Cause: err}
	}

	msg := append(append([]string{}, clientEnvelope...), "", string(payload))
	if err := s.sock.SendMessage(stringArrayToByte2D(msg)); err != nil {
		log.WithError(err).WithField("identity", s.identity).Warn("dropped reply: send timed out")
		return &Error{Code: "server_send_timeout", Message: s.identity, Cause: err}
	}
	return nil
}
