package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/domain"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles. With no roles it only requires authentication.
func RequireRole(allowed ...domain.EmployeeRole) fiber.Handler {
	allowedSet := make(map[domain.EmployeeRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Employee == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// HasRole reports whether the principal holds any of roles.
func HasRole(p *Principal, roles ...domain.EmployeeRole) bool {
	for _, r := range roles {
		if p.Role() == r {
			return true
		}
	}
	return false
}
