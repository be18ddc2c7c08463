package admin

import (
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	"github.com/brocantia/collector/internal/identity"
	"github.com/brocantia/collector/internal/listing"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/logger"
	"github.com/brocantia/collector/pkg/response"
)

// Handler serves the admin API. Account-level operations (block,
// email, password, delete) are mirrored to the identity provider
// through the management client.
type Handler struct {
	idp *identity.Client
	svc *listing.Service
}

func NewHandler(idp *identity.Client, svc *listing.Service) *Handler {
	return &Handler{idp: idp, svc: svc}
}

type userRow struct {
	ID          string    `json:"id"`
	AuthSub     string    `json:"auth_sub"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListUsers returns all accounts with their aggregated roles.
func (h *Handler) ListUsers(c echo.Context) error {
	rows, err := db.Conn.Query(c.Request().Context(), `
        SELECT u.id, u.auth_sub, u.email, u.display_name, u.is_active, u.created_at,
               COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        GROUP BY u.id
        ORDER BY u.created_at`,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch users", err))
	}
	defer rows.Close()

	users := []userRow{}
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.ID, &u.AuthSub, &u.Email, &u.DisplayName, &u.IsActive, &u.CreatedAt, &u.Roles); err != nil {
			return response.Error(c, apperrors.Internal("could not scan user", err))
		}
		users = append(users, u)
	}
	return response.Success(c, users)
}

func (h *Handler) lookupAuthSub(c echo.Context, userID string) (string, error) {
	var authSub string
	err := db.Conn.QueryRow(c.Request().Context(),
		`SELECT auth_sub FROM users WHERE id = $1`, userID,
	).Scan(&authSub)
	if err != nil {
		return "", apperrors.NotFound("user")
	}
	return authSub, nil
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// SetActive activates or deactivates an account locally and blocks or
// unblocks it at the identity provider so the change actually bites at
// login time.
func (h *Handler) SetActive(c echo.Context) error {
	userID := c.Param("id")

	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	authSub, err := h.lookupAuthSub(c, userID)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if _, err := db.Conn.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		*req.IsActive, userID,
	); err != nil {
		return response.Error(c, apperrors.Internal("could not update user", err))
	}

	if err := h.idp.SetBlocked(ctx, authSub, !*req.IsActive); err != nil {
		return response.Error(c, apperrors.Internal("could not update identity provider", err))
	}
	return response.Success(c, echo.Map{"id": userID, "isActive": *req.IsActive})
}

// DeleteUser removes the account locally (foreign keys cascade) and at
// the identity provider. Irreversible.
func (h *Handler) DeleteUser(c echo.Context) error {
	userID := c.Param("id")

	authSub, err := h.lookupAuthSub(c, userID)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if _, err := db.Conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return response.Error(c, apperrors.Internal("could not delete user", err))
	}
	if err := h.idp.DeleteUser(ctx, authSub); err != nil {
		// Local row is gone; surface the provider failure loudly so the
		// orphaned provider account gets cleaned up.
		logger.Error("identity provider delete failed for %s: %v", authSub, err)
		return response.Error(c, apperrors.Internal("user deleted locally but identity provider delete failed", err))
	}
	return response.NoContent(c)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=BUYER SELLER"`
}

// SetRole swaps the user's BUYER/SELLER assignment. ADMIN is never
// granted here, and admins cannot change their own role.
func (h *Handler) SetRole(c echo.Context) error {
	userID := c.Param("id")

	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	req.Role = strings.ToUpper(req.Role)
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if self, _ := c.Get("user_id").(string); self == userID {
		return response.Error(c, apperrors.Validation("cannot change your own role"))
	}

	ctx := c.Request().Context()
	var exists string
	if err := db.Conn.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, userID).Scan(&exists); err != nil {
		return response.Error(c, apperrors.NotFound("user"))
	}

	if _, err := db.Conn.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role IN ('BUYER','SELLER')`, userID,
	); err != nil {
		return response.Error(c, apperrors.Internal("could not clear roles", err))
	}
	if _, err := db.Conn.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING`,
		userID, req.Role,
	); err != nil {
		return response.Error(c, apperrors.Internal("could not assign role", err))
	}
	return response.Success(c, echo.Map{"id": userID, "role": req.Role})
}

var displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type setDisplayNameRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=3,max=30"`
}

func (h *Handler) SetDisplayName(c echo.Context) error {
	userID := c.Param("id")

	var req setDisplayNameRequest
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
	var email *string
	var displayName string
	err := db.Conn.QueryRow(c.Request().Context(), `
        UPDATE users SET display_name = $1, updated_at = NOW() WHERE id = $2
        RETURNING id, email, display_name`,
		req.DisplayName, userID,
	).Scan(&id, &email, &displayName)
	if err != nil {
		return response.Error(c, apperrors.NotFound("user"))
	}
	return response.Success(c, echo.Map{"id": id, "email": email, "displayName": displayName})
}

type setEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SetEmail changes the address at the identity provider first so a
// provider failure cannot leave the local row ahead of it.
func (h *Handler) SetEmail(c echo.Context) error {
	userID := c.Param("id")

	var req setEmailRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	authSub, err := h.lookupAuthSub(c, userID)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if err := h.idp.RequireDatabaseUser(ctx, authSub); err != nil {
		return response.Error(c, err)
	}
	if err := h.idp.ChangeEmail(ctx, authSub, req.Email); err != nil {
		return response.Error(c, apperrors.Internal("could not update identity provider", err))
	}
	if _, err := db.Conn.Exec(ctx,
		`UPDATE users SET email = $1, updated_at = NOW() WHERE id = $2`, req.Email, userID,
	); err != nil {
		return response.Error(c, apperrors.Internal("could not update user", err))
	}
	return response.Success(c, echo.Map{"id": userID, "email": req.Email})
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// SetPassword changes the credential at the identity provider; nothing
// is stored locally.
func (h *Handler) SetPassword(c echo.Context) error {
	userID := c.Param("id")

	var req setPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	authSub, err := h.lookupAuthSub(c, userID)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if err := h.idp.RequireDatabaseUser(ctx, authSub); err != nil {
		return response.Error(c, err)
	}
	if err := h.idp.ChangePassword(ctx, authSub, req.Password); err != nil {
		return response.Error(c, apperrors.Internal("could not update identity provider", err))
	}
	return response.NoContent(c)
}
