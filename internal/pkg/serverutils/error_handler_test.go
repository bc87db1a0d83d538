package serverutils

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"doc-qa-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusFor(t *testing.T, err error) int {
	t.Helper()

	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return err
	})

	resp, reqErr := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, reqErr)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestErrorHandlerDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid options", fmt.Errorf("%w: unknown flag", rag.ErrInvalidOptions), fiber.StatusBadRequest},
		{"empty document", rag.ErrEmptyDocument, fiber.StatusBadRequest},
		{"provider timeout", rag.ErrProviderTimeout, fiber.StatusGatewayTimeout},
		{"provider unavailable", rag.ErrProviderUnavailable, fiber.StatusServiceUnavailable},
		{"index search", fmt.Errorf("%w: pg down", rag.ErrIndexSearch), fiber.StatusBadGateway},
		{"unknown", fmt.Errorf("something else"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, statusFor(t, tc.err))
		})
	}
}

func TestErrorHandlerFiberErrorPassthrough(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, statusFor(t, fiber.NewError(fiber.StatusNotFound, "not found")))
}

func TestErrorHandlerSuccessPassthrough(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(SuccessResponse("ok", fiber.Map{}))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
