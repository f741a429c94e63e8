package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

// AuthHandler serves employee login and logout.
type AuthHandler struct {
	service   *service.AuthService
	validator *validator.Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, v *validator.Validator) *AuthHandler {
	return &AuthHandler{service: authService, validator: v}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	userAgent, ip := clientMeta(c)
	result, err := h.service.Login(c.UserContext(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: userAgent,
		IPAddress: ip,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
		SessionID:   result.Session.ID,
		Employee:    employeeResponse(result.Employee),
	}})
}

// Logout POST /auth/logout revokes the caller's session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.UserContext(), principal.SessionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
