package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/brocantia/collector/pkg/errors"
)

func record(t *testing.T, fn func(c echo.Context) error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, fn(c))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSuccess(t *testing.T) {
	rec, body := record(t, func(c echo.Context) error {
		return Success(c, map[string]string{"hello": "world"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	assert.NotEmpty(t, body.Timestamp)
}

func TestErrorKeepsAppErrorStatusAndCode(t *testing.T) {
	rec, body := record(t, func(c echo.Context) error {
		return Error(c, apperrors.Conflict("cannot submit a listing in status SOLD"))
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "CONFLICT", body.Error.Code)
	assert.Equal(t, "cannot submit a listing in status SOLD", body.Error.Message)
}

func TestErrorMasksUnknownErrors(t *testing.T) {
	rec, body := record(t, func(c echo.Context) error {
		return Error(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection refused")
}

func TestErrorTranslatesValidatorErrors(t *testing.T) {
	type payload struct {
		DisplayName string `validate:"required,min=3"`
	}
	err := validator.New().Struct(payload{DisplayName: "ab"})
	require.Error(t, err)

	rec, body := record(t, func(c echo.Context) error {
		return Error(c, err)
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "displayname must be at least 3", body.Error.Message)
}
