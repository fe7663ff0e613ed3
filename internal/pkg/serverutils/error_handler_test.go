package serverutils

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createReq struct {
	Message string `validate:"required"`
}

func TestErrorHandlerMiddleware(t *testing.T) {
	errConflict := errors.New("plan is executing")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"status error", WithStatus(fiber.StatusConflict, errConflict), fiber.StatusConflict, "plan is executing"},
		{"fiber error", fiber.NewError(fiber.StatusBadRequest, "Invalid session ID"), fiber.StatusBadRequest, "Invalid session ID"},
		{"validation", ValidateRequest(createReq{}), fiber.StatusBadRequest, "Validation failed"},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware())
			app.Get("/", func(ctx *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestValidateRequestFields(t *testing.T) {
	err := ValidateRequest(createReq{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"Message": "is required"}, verr.Fields)

	assert.NoError(t, ValidateRequest(createReq{Message: "hi"}))
}
