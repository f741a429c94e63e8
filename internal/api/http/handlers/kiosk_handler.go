package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

// KioskHandler serves QR issuance and redemption.
type KioskHandler struct {
	tokens    *service.TokenService
	checkin   *service.CheckinService
	validator *validator.Validator
}

// NewKioskHandler constructs handler.
func NewKioskHandler(tokens *service.TokenService, checkin *service.CheckinService, v *validator.Validator) *KioskHandler {
	return &KioskHandler{tokens: tokens, checkin: checkin, validator: v}
}

// QRDisplay GET /qr-display?purpose=attendance|visitor.
func (h *KioskHandler) QRDisplay(c *fiber.Ctx) error {
	purpose := domain.TokenPurpose(c.Query("purpose", string(domain.TokenPurposeAttendance)))
	token, err := h.tokens.Issue(c.UserContext(), purpose)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(fiber.Map{"data": dto.QRDisplayResponse{
		Token:     token.Token,
		Purpose:   token.Purpose,
		ExpiresAt: token.ExpiresAt,
	}})
}

// QRScan POST /qr-scan. Attendance tokens act for the authenticated caller; visitor
// tokens act for the visitor described in the body.
func (h *KioskHandler) QRScan(c *fiber.Ctx) error {
	var req dto.QRScanRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	userAgent, ip := clientMeta(c)
	actor := service.ActorContext{UserAgent: userAgent, IPAddress: ip}
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.Employee != nil {
		actor.EmployeeID = principal.Employee.ID
		actor.SessionID = principal.SessionID
	}
	if req.Visitor != nil {
		actor.Visitor = &service.VisitorDetails{
			FullName:       req.Visitor.FullName,
			Contact:        req.Visitor.Contact,
			HostEmployeeID: req.Visitor.HostEmployeeID,
			Purpose:        req.Visitor.Purpose,
		}
	}

	outcome, err := h.checkin.Scan(c.UserContext(), req.Token, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(outcome)})
}
