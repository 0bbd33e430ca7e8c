package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditstore/internal/types"
)

type validatedPayload struct {
	Email    string `validate:"required,email"`
	Quantity int64  `validate:"gte=1"`
}

func TestValidator_ValidStruct(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct(validatedPayload{Email: "demo@example.com", Quantity: 2})
	require.NoError(t, err)
}

func TestValidator_FieldErrorsBecomeDetails(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct(validatedPayload{Email: "not-an-email", Quantity: 0})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidation, appErr.Code)
	assert.Equal(t, "email", appErr.Details["Email"])
	assert.Equal(t, "gte", appErr.Details["Quantity"])
}

func TestValidator_NonStructInput(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct("not a struct")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}
