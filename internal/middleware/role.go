package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin aborts with 403 unless the caller was marked as an
// administrator by JWTAuth.  It must be registered after JWTAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CallerFrom(c).IsAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "administrator role required"})
			}
			return next(c)
		}
	}
}
