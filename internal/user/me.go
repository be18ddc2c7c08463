package user

import (
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

type profile struct {
	ID          string    `json:"id"`
	AuthSub     string    `json:"auth_sub"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
}

func loadProfile(c echo.Context, authSub string) (*profile, error) {
	var p profile
	err := db.Conn.QueryRow(c.Request().Context(), `
        SELECT u.id, u.auth_sub, u.email, u.display_name, u.is_active, u.created_at,
               COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        WHERE u.auth_sub = $1
        GROUP BY u.id`,
		authSub,
	).Scan(&p.ID, &p.AuthSub, &p.Email, &p.DisplayName, &p.IsActive, &p.CreatedAt, &p.Roles)
	if err != nil {
		return nil, apperrors.NotFound("user")
	}
	return &p, nil
}

func currentAuthSub(c echo.Context) (string, error) {
	authSub, ok := c.Get("auth_sub").(string)
	if !ok || authSub == "" {
		return "", apperrors.Unauthorized("unauthorized")
	}
	return authSub, nil
}

// Me returns the caller's local account and roles.
func Me(c echo.Context) error {
	authSub, err := currentAuthSub(c)
	if err != nil {
		return response.Error(c, err)
	}
	p, err := loadProfile(c, authSub)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, p)
}

type syncRequest struct {
	Email       *string `json:"email"`
	InitialRole *string `json:"initialRole"`
}

// Sync creates or refreshes the caller's local account after login. The
// row is keyed by the token subject; a supplied email only fills the
// column when the existing one is NULL. The initial role is honored
// once: accounts that already have any role keep it.
func Sync(c echo.Context) error {
	authSub, err := currentAuthSub(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}

	role := "BUYER"
	if req.InitialRole != nil {
		role = strings.ToUpper(strings.TrimSpace(*req.InitialRole))
		if role != "BUYER" && role != "SELLER" {
			return response.Error(c, apperrors.Validation("initialRole must be BUYER or SELLER"))
		}
	}

	ctx := c.Request().Context()
	var userID string
	err = db.Conn.QueryRow(ctx, `
        INSERT INTO users (auth_sub, email) VALUES ($1, $2)
        ON CONFLICT (auth_sub) DO UPDATE
            SET email = COALESCE(users.email, EXCLUDED.email),
                updated_at = NOW()
        RETURNING id`,
		authSub, req.Email,
	).Scan(&userID)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not sync user", err))
	}

	if _, err := db.Conn.Exec(ctx, `
        INSERT INTO user_roles (user_id, role)
        SELECT $1, $2
        WHERE NOT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1)`,
		userID, role,
	); err != nil {
		return response.Error(c, apperrors.Internal("could not assign role", err))
	}

	p, err := loadProfile(c, authSub)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, p)
}

var displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type displayNameRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=3,max=30"`
}

// SetDisplayName updates the caller's public name.
func SetDisplayName(c echo.Context) error {
	authSub, err := currentAuthSub(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req displayNameRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	if !displayNamePattern.MatchString(req.DisplayName) {
		return response.Error(c, apperrors.Validation("displayName: use letters, numbers, _ or - only"))
	}

	var id string
	var displayName string
	err = db.Conn.QueryRow(c.Request().Context(), `
        UPDATE users SET display_name = $1, updated_at = NOW() WHERE auth_sub = $2
        RETURNING id, display_name`,
		req.DisplayName, authSub,
	).Scan(&id, &displayName)
	if err != nil {
		return response.Error(c, apperrors.NotFound("user"))
	}
	return response.Success(c, echo.Map{"id": id, "displayName": displayName})
}
