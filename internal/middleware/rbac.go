package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

// RequireRole checks the verified subject's role assignments in the
// database on every request and stores the local user ID under
// "user_id". Roles are never cached.
// Usage: group.Use(authn.Require, middleware.RequireRole("SELLER"))
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub, _ := c.Get("auth_sub").(string)
			if sub == "" {
				return response.Error(c, apperrors.Unauthorized("missing subject"))
			}

			rows, err := db.Conn.Query(c.Request().Context(), `
                SELECT u.id, ur.role
                FROM users u
                JOIN user_roles ur ON ur.user_id = u.id
                WHERE u.auth_sub = $1`,
				sub,
			)
			if err != nil {
				return response.Error(c, apperrors.Internal("could not check roles", err))
			}
			defer rows.Close()

			var userID string
			allowed := false
			for rows.Next() {
				var r string
				if err := rows.Scan(&userID, &r); err != nil {
					return response.Error(c, apperrors.Internal("could not scan role", err))
				}
				if r == role {
					allowed = true
				}
			}
			if err := rows.Err(); err != nil {
				return response.Error(c, apperrors.Internal("could not check roles", err))
			}
			if !allowed {
				return response.Error(c, apperrors.Forbidden("access denied"))
			}

			c.Set("user_id", userID)
			return next(c)
		}
	}
}
