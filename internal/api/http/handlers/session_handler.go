package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/service"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

// SessionHandler exposes the session registry to its owners.
type SessionHandler struct {
	sessions  *service.SessionService
	validator *validator.Validator
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, v *validator.Validator) *SessionHandler {
	return &SessionHandler{sessions: sessions, validator: v}
}

// List GET /sessions.
func (h *SessionHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	sessions, err := h.sessions.List(c.UserContext(), principal.Employee.ID)
	if err != nil {
		return err
	}
	items := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionResponse(s, principal.SessionID))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Delete DELETE /sessions/:id. Unknown ids succeed.
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	privileged := auth.HasRole(principal, domain.RoleHR, domain.RoleAdmin)
	if err := h.sessions.RevokeOwned(c.UserContext(), principal.Employee.ID, c.Params("id"), privileged); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RevokeAll POST /sessions/revoke-all.
func (h *SessionHandler) RevokeAll(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RevokeAllRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validator, &req); err != nil {
			return err
		}
	}
	userID := principal.Employee.ID
	if req.UserID != "" && req.UserID != userID {
		if !auth.HasRole(principal, domain.RoleHR, domain.RoleAdmin) {
			return apperrors.NewForbidden("cannot revoke another employee's sessions")
		}
		userID = req.UserID
	}
	reason := req.Reason
	if reason == "" {
		reason = "user request"
	}
	removed, err := h.sessions.RevokeAll(c.UserContext(), userID, reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RevokeAllResponse{Revoked: removed}})
}
