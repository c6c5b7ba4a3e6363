package router

import (
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/snd-kmd/caenhv/core/receipt"
)

// AsyncClient issues receipts to a fixed set of named executors reachable
// through the broker's frontend, and awaits their replies. Each call to
// Query opens its own DEALER socket, so replies cannot be interleaved
// across calls and the client is safe to use concurrently from multiple
// goroutines.
type AsyncClient struct {
	endpoints      map[string]string
	defaultTimeout time.Duration
}

// NewAsyncClient builds a client addressing the given service-name ->
// broker-frontend-endpoint map.
func NewAsyncClient(endpoints map[string]string) *AsyncClient {
	return &AsyncClient{
		endpoints:      endpoints,
		defaultTimeout: DefaultClientTimeout,
	}
}

// SetDefaultTimeout overrides the receive timeout used when Query is
// called without an explicit one.
func (c *AsyncClient) SetDefaultTimeout(d time.Duration) {
	c.defaultTimeout = d
}

// Query sends a receipt to its executor and waits for the reply. On
// success it returns the reply receipt, unmodified except for its
// Response field. On an unknown executor it returns immediately with a
// 404 response; on a receive timeout it returns the original receipt
// stamped with a 503 response.
func (c *AsyncClient) Query(r *receipt.Receipt, timeout ...time.Duration) *receipt.Receipt {
	endpoint, ok := c.endpoints[r.Executor]
	if !ok {
		log.WithFields(log.Fields{"executor": r.Executor}).Warn("unknown executor")
		return r.WithResponse(receipt.StatusNotFound, "unknown executor: "+r.Executor)
	}

	recvTimeout := c.defaultTimeout
	if len(timeout) > 0 {
		recvTimeout = timeout[0]
	}

	sock, err := czmq.NewDealer(endpoint)
	if err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Error("failed to open dealer socket")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}
	sock.SetOption(czmq.SockSetSndtimeo(int(ClientSendTimeout.Milliseconds())))
	defer func() {
		sock.SetOption(czmq.SockSetLinger(0))
		sock.Destroy()
	}()

	poller, err := czmq.NewPoller(sock)
	if err != nil {
		log.WithError(err).Error("failed to create poller")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}
	defer poller.Destroy()

	payload, err := receipt.Encode(r)
	if err != nil {
		log.WithError(err).Error("failed to encode receipt")
		return r.WithResponse(receipt.StatusApplicationFail, err.Error())
	}

	if err := sock.SendMessage(stringArrayToByte2D([]string{"", string(payload)})); err != nil {
		log.WithError(err).Error("failed to send receipt")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}

	readySocket, err := poller.Wait(int(recvTimeout / time.Millisecond))
	if err != nil {
		log.WithError(err).Error("client poller failure")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}
	if readySocket == nil {
		log.WithFields(log.Fields{
			"executor": r.Executor,
			"timeout":  recvTimeout,
		}).Warn("no reply received within timeout")
		return r.WithResponse(receipt.StatusGatewayTimeout, "gateway timeout")
	}

	frames, err := readySocket.RecvMessage()
	if err != nil {
		log.WithError(err).Error("failed to receive reply")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}

	msg := byte2DToStringArray(frames)
	if len(msg) < 2 {
		log.WithField("frames", msg).Error("malformed reply")
		return r.WithResponse(receipt.StatusGatewayTimeout, "malformed reply")
	}

	reply, err := receipt.Decode([]byte(msg[len(msg)-1]))
	if err != nil {
		log.WithError(err).Error("failed to decode reply receipt")
		return r.WithResponse(receipt.StatusGatewayTimeout, err.Error())
	}

	return reply
}
