package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
)

func TestOKWithData(t *testing.T) {
	resp := OKWithData(map[string]any{"id": 7})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("plan not found")
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "plan not found", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type req struct {
		Slug     string `validate:"required"`
		Currency string `validate:"required,len=3"`
		Units    int64  `validate:"gte=0"`
	}

	err := validator.New().Struct(req{Currency: "RUBLES", Units: -1})
	assert.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Slug is a required field")
	assert.Contains(t, resp.Error, "field Currency must be exactly 3 characters long")
	assert.Contains(t, resp.Error, "field Units must be greater than or equal to 0")
}
