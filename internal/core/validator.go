package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"creditstore/internal/types"
)

// Validator wraps go-playground/validator and translates its field errors
// into the application error taxonomy so handlers can pass validation
// failures straight to core.Error.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a struct using its `validate` tags. On failure it
// returns a *types.AppError with code VALIDATION_ERROR and per-field details.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError (non-struct input) is a programming error.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidation,
		"request validation failed",
		err,
		details,
	)
}
