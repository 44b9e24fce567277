package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/services"
	"github.com/example/stockroute/internal/utils"
)

// AuthHandler bundles dependencies for shop authentication endpoints.
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type signupRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Contact     string `json:"contact" validate:"required"`
	ShopName    string `json:"shop_name" validate:"required"`
	ShopAddress string `json:"shop_address"`
	GSTIN       string `json:"gstin" validate:"required"`
	Password    string `json:"password" validate:"required,min=6"`
}

// Signup creates an unverified shop owner and mails a verification code.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Signup(c.UserContext(), services.SignupInput{
		Name:        req.Name,
		Email:       req.Email,
		Contact:     req.Contact,
		ShopName:    req.ShopName,
		ShopAddress: req.ShopAddress,
		GSTIN:       req.GSTIN,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "verification code sent",
		"data": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

type verifyOTPRequest struct {
	Email string   `json:"email" validate:"required,email"`
	OTP   otp.Code `json:"otp" validate:"required"`
}

// VerifyOTP marks the shop owner verified and returns a session.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.VerifySignup(c.UserContext(), req.Email, req.OTP.String())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": sessionResponse(session)})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a shop owner or one of its managers.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": sessionResponse(session)})
}

type passwordOTPRequest struct {
	Role  string `json:"role" validate:"omitempty,oneof=user manager"`
	Email string `json:"email" validate:"required,email"`
}

// RequestPasswordOTP mails a password reset code.
func (h *AuthHandler) RequestPasswordOTP(c *fiber.Ctx) error {
	var req passwordOTPRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	if err := h.accounts.RequestOTP(c.UserContext(), role(req.Role), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "otp sent"})
}

type resetPasswordRequest struct {
	Role        string   `json:"role" validate:"omitempty,oneof=user manager"`
	Email       string   `json:"email" validate:"required,email"`
	OTP         otp.Code `json:"otp" validate:"required"`
	NewPassword string   `json:"new_password" validate:"required,min=6"`
}

// ResetPassword consumes the reset code and stores the new password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := utils.BindJSON(c, &req); err != nil {
		return err
	}

	if err := h.accounts.ResetPassword(c.UserContext(), role(req.Role), req.Email, req.OTP.String(), req.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

func role(value string) services.AccountRole {
	if value == string(services.RoleManager) {
		return services.RoleManager
	}
	return services.RoleUser
}

func sessionResponse(s *services.Session) fiber.Map {
	resp := fiber.Map{
		"token":   s.Token,
		"role":    s.Actor.Kind,
		"user_id": s.Actor.EffectiveUserID(),
		"user":    s.User,
	}
	if s.Actor.ManagerID != nil {
		resp["manager_id"] = *s.Actor.ManagerID
		resp["manager"] = s.Manager
	}
	return resp
}
