package serialization

import (
	"encoding/json"
	"errors"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
)

// Unmarshal decodes the JSON body into v and validates it. Both failures are
// returned as validation service errors naming typeName.
func Unmarshal(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, jsonBytes []byte, v any, typeName string) error {
	if err := json.Unmarshal(jsonBytes, v); err != nil {
		return serviceerrors.Wrap(err, messages.JSONUnmarshalFailed, "Type", typeName, "Error", err.Error())
	}
	return Validate(validate, executionContext, v, typeName)
}

// Validate runs the struct validation of v.
func Validate(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, v any, typeName string) error {
	err := validate.StructCtx(executionContext.Ctx, v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return serviceerrors.Wrap(err, messages.RequestValidationFailed, "Type", typeName, "Error", err.Error())
	}
	fields := make([]string, 0, len(validationErrors))
	for _, validationError := range validationErrors {
		executionContext.Logger.Info("Validation error", "field", validationError.Field(), "tag", validationError.Tag(), "value", validationError.Value())
		fields = append(fields, validationError.Field()+" ("+validationError.Tag()+")")
	}
	return serviceerrors.Wrap(err, messages.RequestValidationFailed, "Type", typeName, "Error", strings.Join(fields, ", "))
}
