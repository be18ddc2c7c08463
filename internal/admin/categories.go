package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

type category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	IsActive bool    `json:"is_active"`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListCategories returns the full taxonomy including inactive entries.
func (h *Handler) ListCategories(c echo.Context) error {
	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT id, name, parent_id, is_active FROM categories ORDER BY name`,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch categories", err))
	}
	defer rows.Close()

	categories := []category{}
	for rows.Next() {
		var cat category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.ParentID, &cat.IsActive); err != nil {
			return response.Error(c, apperrors.Internal("could not scan category", err))
		}
		categories = append(categories, cat)
	}
	return response.Success(c, categories)
}

type createCategoryRequest struct {
	Name     string  `json:"name" validate:"required,min=1"`
	ParentID *string `json:"parentId"`
}

func (h *Handler) CreateCategory(c echo.Context) error {
	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	var cat category
	err := db.Conn.QueryRow(c.Request().Context(), `
        INSERT INTO categories (name, parent_id) VALUES ($1, $2)
        RETURNING id, name, parent_id, is_active`,
		req.Name, req.ParentID,
	).Scan(&cat.ID, &cat.Name, &cat.ParentID, &cat.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return response.Error(c, apperrors.Validation("category name must be unique"))
		}
		return response.Error(c, apperrors.Internal("could not create category", err))
	}
	return response.Created(c, cat)
}

type updateCategoryRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
	IsActive *bool   `json:"isActive"`
}

// UpdateCategory patches name, parent or active flag; the SET clause is
// built from whichever fields were supplied.
func (h *Handler) UpdateCategory(c echo.Context) error {
	catID := c.Param("id")

	var req updateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}

	var fields []string
	var values []interface{}
	idx := 1
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return response.Error(c, apperrors.Validation("name cannot be empty"))
		}
		fields = append(fields, fmt.Sprintf("name = $%d", idx))
		values = append(values, name)
		idx++
	}
	if req.ParentID != nil {
		fields = append(fields, fmt.Sprintf("parent_id = $%d", idx))
		values = append(values, *req.ParentID)
		idx++
	}
	if req.IsActive != nil {
		fields = append(fields, fmt.Sprintf("is_active = $%d", idx))
		values = append(values, *req.IsActive)
		idx++
	}
	if len(fields) == 0 {
		return response.Error(c, apperrors.Validation("nothing to update"))
	}
	values = append(values, catID)

	var cat category
	err := db.Conn.QueryRow(c.Request().Context(),
		fmt.Sprintf(`UPDATE categories SET %s WHERE id = $%d RETURNING id, name, parent_id, is_active`,
			strings.Join(fields, ", "), idx),
		values...,
	).Scan(&cat.ID, &cat.Name, &cat.ParentID, &cat.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return response.Error(c, apperrors.Validation("category name must be unique"))
		}
		return response.Error(c, apperrors.NotFound("category"))
	}
	return response.Success(c, cat)
}

// DeleteCategory soft-deletes: the row stays for referential integrity
// but can no longer be used.
func (h *Handler) DeleteCategory(c echo.Context) error {
	var cat category
	err := db.Conn.QueryRow(c.Request().Context(), `
        UPDATE categories SET is_active = FALSE WHERE id = $1
        RETURNING id, name, parent_id, is_active`,
		c.Param("id"),
	).Scan(&cat.ID, &cat.Name, &cat.ParentID, &cat.IsActive)
	if err != nil {
		return response.Error(c, apperrors.NotFound("category"))
	}
	return response.Success(c, cat)
}
