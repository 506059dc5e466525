package auth

import (
	"github.com/labstack/echo/v4"
)

// RequirePermission rejects requests whose caller may not perform op. The
// returned error is classified, so the envelope error handler renders it as
// 401 or 403.
func RequirePermission(op Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := Authorize(c.Request().Context(), op); err != nil {
				return err
			}
			return next(c)
		}
	}
}
