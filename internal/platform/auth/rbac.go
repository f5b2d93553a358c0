package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Authorize checks that the principal holds at least one of the required
// roles. It is independent of the transport layer so services and tests can
// gate operations directly. An admin principal passes every gate.
func Authorize(p Principal, roles ...string) error {
	if p.Role == "admin" {
		return nil
	}
	for _, required := range roles {
		if p.Role == required {
			return nil
		}
	}
	return apperr.Authorization(fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
}

// RequireRole returns middleware that applies Authorize to the request's
// principal.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := FromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if err := Authorize(p, roles...); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			return next(c)
		}
	}
}
