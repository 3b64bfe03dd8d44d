package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// allowRoles lets admins through, plus the holders of any of roles.
func allowRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr := claims.user()
			if usr.IsAdmin() || usr.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return allowRoles()
}

// readOnlyOr lets everyone read and restricts writes to mw.
func readOnlyOr(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := mw(next)
		return func(ctx echo.Context) error {
			if ctx.Request().Method == http.MethodGet || ctx.Request().Method == http.MethodHead {
				return next(ctx)
			}
			return guarded(ctx)
		}
	}
}
