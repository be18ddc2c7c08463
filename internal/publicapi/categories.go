package publicapi

import (
	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

type category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

// Categories returns the active taxonomy for browse filters.
func Categories(c echo.Context) error {
	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT id, name, parent_id FROM categories WHERE is_active = TRUE ORDER BY name`,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch categories", err))
	}
	defer rows.Close()

	categories := []category{}
	for rows.Next() {
		var cat category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.ParentID); err != nil {
			return response.Error(c, apperrors.Internal("could not scan category", err))
		}
		categories = append(categories, cat)
	}
	return response.Success(c, categories)
}
