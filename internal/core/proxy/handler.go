package proxy

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct{ pool *Pool }

func NewHandler(pool *Pool) *Handler { return &Handler{pool: pool} }

func (h *Handler) HandleList(c *fiber.Ctx) error {
	return c.JSON(h.pool.List())
}

func (h *Handler) HandleAdd(c *fiber.Ctx) error {
	var e Endpoint
	if err := c.BodyParser(&e); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if err := h.pool.Add(e); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "id": e.ID()})
}

func (h *Handler) HandleRemove(c *fiber.Ctx) error {
	if err := h.pool.Remove(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) HandleClearFailures(c *fiber.Ctx) error {
	h.pool.ClearFailures()
	return c.JSON(fiber.Map{"success": true})
}
