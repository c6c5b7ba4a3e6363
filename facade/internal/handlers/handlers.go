// Package handlers implements the façade's HTTP boundary: operator
// actions proxied to the broker as receipts, plus a websocket live
// telemetry feed and a read-only interlock history endpoint. This
// package is a thin translation layer, not a control-plane participant
// in its own right.
//
// Grounded on plantd/app's fiber handler shape and its
// gofiber/contrib/websocket live-feed route.
package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/snd-kmd/caenhv/core/receipt"
	"github.com/snd-kmd/caenhv/core/router"
	"github.com/snd-kmd/caenhv/facade/internal/history"
)

var validate = validator.New()

// Handlers holds the shared dependencies every route uses.
type Handlers struct {
	cli    *router.AsyncClient
	sender string
	mirror *history.Mirror
}

// New builds a Handlers bound to the broker-facing client. mirror may be
// nil, in which case InterlockHistory reports the feature as disabled.
func New(cli *router.AsyncClient, mirror *history.Mirror) *Handlers {
	return &Handlers{cli: cli, sender: "facade/operator", mirror: mirror}
}

type setVoltageRequest struct {
	TargetVoltage float64 `json:"target_voltage" validate:"required,gt=0"`
}

// SetVoltage proxies an operator-originated set_voltage to device_backend.
func (h *Handlers) SetVoltage(c *fiber.Ctx) error {
	var req setVoltageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	id := uuid.New().String()
	r := receipt.New(h.sender, router.ServiceDeviceBackend, "set_voltage", map[string]interface{}{
		"target_voltage": req.TargetVoltage,
		"from_user":      true,
	})
	log.WithField("correlation_id", id).Info("facade: set_voltage requested")

	reply := h.cli.Query(r, 2*time.Second)
	return c.Status(statusToHTTP(reply.Response.StatusCode)).JSON(fiber.Map{
		"correlation_id": id,
		"response":       reply.Response,
	})
}

// Status proxies a status query to system_check.
func (h *Handlers) Status(c *fiber.Ctx) error {
	r := receipt.New(h.sender, router.ServiceSystemCheck, "status", nil)
	reply := h.cli.Query(r, 2*time.Second)
	return c.Status(statusToHTTP(reply.Response.StatusCode)).JSON(reply.Response)
}

type scriptToggleRequest struct {
	Script string `json:"script" validate:"required"`
}

// EnableScript proxies an enable_script toggle to system_check.
func (h *Handlers) EnableScript(c *fiber.Ctx) error {
	return h.toggleScript(c, "enable_script")
}

// DisableScript proxies a disable_script toggle to system_check.
func (h *Handlers) DisableScript(c *fiber.Ctx) error {
	return h.toggleScript(c, "disable_script")
}

func (h *Handlers) toggleScript(c *fiber.Ctx, title string) error {
	var req scriptToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	r := receipt.New(h.sender, router.ServiceSystemCheck, title, map[string]interface{}{"script": req.Script})
	reply := h.cli.Query(r, 2*time.Second)
	return c.Status(statusToHTTP(reply.Response.StatusCode)).JSON(reply.Response)
}

// InterlockHistory returns the most recent interlock transitions from
// the read-side mirror, newest first. limit is capped at 500 and
// defaults to 50.
func (h *Handlers) InterlockHistory(c *fiber.Ctx) error {
	if h.mirror == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "interlock history mirror disabled")
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	events, err := h.mirror.Recent(c.Context(), limit)
	if err != nil {
		log.WithError(err).Error("facade: interlock history query failed")
		return fiber.NewError(fiber.StatusInternalServerError, "interlock history query failed")
	}
	return c.JSON(fiber.Map{"events": events})
}

// Telemetry streams a live status poll every second over a websocket,
// grounded on plantd/app's websocket.New(handlers.ReloadWS) route.
func (h *Handlers) Telemetry(c *websocket.Conn) {
	defer c.Close()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		r := receipt.New(h.sender, router.ServiceDeviceBackend, "params", nil)
		reply := h.cli.Query(r, 2*time.Second)
		if err := c.WriteJSON(reply.Response); err != nil {
			return
		}
	}
}

func statusToHTTP(code int) int {
	switch code {
	case receipt.StatusOK:
		return fiber.StatusOK
	case receipt.StatusForbidden:
		return fiber.StatusForbidden
	case receipt.StatusNotFound:
		return fiber.StatusNotFound
	case receipt.StatusGatewayTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
