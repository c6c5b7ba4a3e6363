package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snd-kmd/caenhv/core/receipt"
)

// setupBroker wires up a broker with a single worker and an async client
// talking through it, for exercising the whole path end to end.
func setupBroker(t *testing.T) (*Broker, *RouterServer, *AsyncClient, func()) {
	t.Helper()

	frontendEP := "inproc://router-test-frontend"
	backendEP := "inproc://router-test-backend"

	b := NewBroker(ServiceDeviceBackend)
	require.NoError(t, b.Bind(frontendEP, backendEP, ""))

	stop := make(chan struct{})
	go func() { _ = b.Run(stop) }()

	server, err := NewRouterServer(ServiceDeviceBackend, backendEP)
	require.NoError(t, err)

	client := NewAsyncClient(map[string]string{ServiceDeviceBackend: frontendEP})
	client.SetDefaultTimeout(2 * time.Second)

	cleanup := func() {
		close(stop)
		server.Close()
		b.Close()
	}

	return b, server, client, cleanup
}

func TestAsyncClientReturns404ForUnknownExecutor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := NewAsyncClient(map[string]string{})
	r := receipt.New("operator", "no_such_service", "status", nil)

	reply := client.Query(r)

	require.NotNil(t, reply.Response)
	assert.Equal(t, receipt.StatusNotFound, reply.Response.StatusCode)
}

func TestAsyncClientReturns503OnTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, _, client, cleanup := setupBroker(t)
	defer cleanup()
	client.SetDefaultTimeout(200 * time.Millisecond)

	// No RecvReceipt loop is running on the worker side, so the request
	// is forwarded to the backend and then nobody ever replies.
	r := receipt.New("operator", ServiceDeviceBackend, "status", nil)
	reply := client.Query(r)

	require.NotNil(t, reply.Response)
	assert.Equal(t, receipt.StatusGatewayTimeout, reply.Response.StatusCode)
}

func TestIdentityIsPreservedAcrossBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, server, client, cleanup := setupBroker(t)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		envelope, r, err := server.RecvReceipt()
		if err != nil {
			return
		}
		reply := r.WithResponse(receipt.StatusOK, map[string]interface{}{"voltage": 1250.0})
		_ = server.SendReceipt(envelope, reply)
	}()

	r := receipt.New("operator", ServiceDeviceBackend, "get_voltage", map[string]interface{}{"channel": "ch0"})
	reply := client.Query(r)

	<-done

	require.NotNil(t, reply.Response)
	assert.True(t, reply.Response.IsOK())
	assert.Equal(t, "operator", reply.Sender)
	assert.Equal(t, ServiceDeviceBackend, reply.Executor)

	body, ok := reply.Response.AsMap()
	require.True(t, ok)
	assert.Equal(t, 1250.0, body["voltage"])
}

func TestConcurrentQueriesDoNotInterleave(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, server, client, cleanup := setupBroker(t)
	defer cleanup()

	const n = 8
	go func() {
		for i := 0; i < n; i++ {
			envelope, r, err := server.RecvReceipt()
			if err != nil {
				return
			}
			reply := r.WithResponse(receipt.StatusOK, r.Params["tag"])
			_ = server.SendReceipt(envelope, reply)
		}
	}()

	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func(tag string) {
			r := receipt.New("operator", ServiceDeviceBackend, "status", map[string]interface{}{"tag": tag})
			reply := client.Query(r)
			body, _ := reply.Response.AsString()
			results <- body == tag
		}(string(rune('a' + i)))
	}

	for i := 0; i < n; i++ {
		assert.True(t, <-results, "reply body did not match the request that produced it")
	}
}
