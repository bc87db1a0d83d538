package serverutils

import (
	"testing"

	"doc-qa-be/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Question string `validate:"required"`
	Provider string `validate:"omitempty,oneof=openai ollama"`
	TopK     int    `validate:"omitempty,min=1,max=20"`
}

func TestValidateRequestValid(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Question: "q", Provider: "ollama", TopK: 4}))
	assert.NoError(t, ValidateRequest(sampleRequest{Question: "q"}))
}

func TestValidateRequestMissingRequired(t *testing.T) {
	err := ValidateRequest(sampleRequest{})
	require.Error(t, err)

	fiberErr, ok := err.(*fiber.Error)
	require.True(t, ok)
	assert.Equal(t, fiber.StatusBadRequest, fiberErr.Code)
	assert.Contains(t, fiberErr.Message, "Question (required)")
}

func TestValidateRequestBadEnum(t *testing.T) {
	err := ValidateRequest(sampleRequest{Question: "q", Provider: "gemini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider (oneof)")
}

func TestValidateRequestRangeBounds(t *testing.T) {
	err := ValidateRequest(sampleRequest{Question: "q", TopK: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TopK (max)")
}

func TestValidateRequestAcceptsOptionalImageIds(t *testing.T) {
	req := &dto.AskRequest{
		ChatSessionId: uuid.New(),
		Question:      "q",
		ImageIds:      []uuid.UUID{uuid.New(), uuid.New()},
	}
	assert.NoError(t, ValidateRequest(req))
}
