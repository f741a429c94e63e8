package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/auth"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

func parseBody(c *fiber.Ctx, v *validator.Validator, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details, err := v.Struct(out)
	if err != nil {
		if details != nil {
			return apperrors.NewValidationError("validation failed", details)
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Employee == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 50)
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be RFC3339"})
	}
	return &t, nil
}

func clientMeta(c *fiber.Ctx) (userAgent, ip string) {
	return c.Get(fiber.HeaderUserAgent), c.IP()
}
