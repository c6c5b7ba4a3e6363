package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
)

func newTestApp(t *testing.T, handle func(r *receipt.Receipt) *receipt.Receipt) (*fiber.App, func()) {
	t.Helper()

	frontendEP := "inproc://facade-test-frontend"
	backendEP := "inproc://facade-test-backend"

	b := router.NewBroker(router.ServiceDeviceBackend, router.ServiceSystemCheck)
	require.NoError(t, b.Bind(frontendEP, backendEP, ""))

	stop := make(chan struct{})
	go func() { _ = b.Run(stop) }()

	serveAs := func(identity string) *router.RouterServer {
		server, err := router.NewRouterServer(identity, backendEP)
		require.NoError(t, err)
		go func() {
			for {
				envelope, r, err := server.RecvReceipt()
				if err != nil {
					return
				}
				if err := server.SendReceipt(envelope, handle(r)); err != nil {
					return
				}
			}
		}()
		return server
	}

	deviceServer := serveAs(router.ServiceDeviceBackend)
	systemCheckServer := serveAs(router.ServiceSystemCheck)

	cli := router.NewAsyncClient(map[string]string{
		router.ServiceDeviceBackend: frontendEP,
		router.ServiceSystemCheck:   frontendEP,
	})
	cli.SetDefaultTimeout(2 * time.Second)

	h := New(cli, nil)
	app := fiber.New()
	app.Post("/api/voltage", h.SetVoltage)
	app.Get("/api/status", h.Status)
	app.Post("/api/scripts/enable", h.EnableScript)
	app.Get("/api/interlock/history", h.InterlockHistory)

	cleanup := func() {
		close(stop)
		deviceServer.Close()
		systemCheckServer.Close()
		b.Close()
	}

	return app, cleanup
}

func TestSetVoltageRejectsMissingTarget(t *testing.T) {
	app, cleanup := newTestApp(t, func(r *receipt.Receipt) *receipt.Receipt {
		return r.WithResponse(receipt.StatusOK, nil)
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/voltage", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSetVoltageProxiesToDeviceBackend(t *testing.T) {
	var gotTarget float64
	app, cleanup := newTestApp(t, func(r *receipt.Receipt) *receipt.Receipt {
		gotTarget, _ = r.Params["target_voltage"].(float64)
		fromUser, _ := r.Params["from_user"].(bool)
		assert.True(t, fromUser)
		return r.WithResponse(receipt.StatusOK, map[string]interface{}{"target_voltage": gotTarget})
	})
	defer cleanup()

	body, _ := json.Marshal(map[string]interface{}{"target_voltage": 500.0})
	req := httptest.NewRequest(http.MethodPost, "/api/voltage", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.InDelta(t, 500, gotTarget, 1e-6)
}

func TestInterlockHistoryReportsDisabledWithoutMirror(t *testing.T) {
	app, cleanup := newTestApp(t, func(r *receipt.Receipt) *receipt.Receipt {
		return r.WithResponse(receipt.StatusOK, nil)
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/interlock/history", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusMapsForbiddenToHTTP(t *testing.T) {
	app, cleanup := newTestApp(t, func(r *receipt.Receipt) *receipt.Receipt {
		return r.WithResponse(receipt.StatusForbidden, "nope")
	})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
