package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/services"
	"github.com/example/stockroute/internal/utils"
)

// ManagerHandler lets a shop owner manage its managers.
type ManagerHandler struct {
	accounts *services.AccountService
}

func NewManagerHandler(accounts *services.AccountService) *ManagerHandler {
	return &ManagerHandler{accounts: accounts}
}

type createManagerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *ManagerHandler) ListManagers(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	managers, err := h.accounts.ListManagers(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": managers})
}

func (h *ManagerHandler) CreateManager(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req createManagerRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	manager, err := h.accounts.CreateManager(c.UserContext(), actor, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": manager})
}

func (h *ManagerHandler) DeleteManager(c *fiber.Ctx) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.accounts.DeleteManager(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "manager deleted"})
}
