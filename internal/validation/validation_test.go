package validation_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/gametester/runctl/internal/validation"
	"github.com/gametester/runctl/pkg/api"
)

func TestValidator(t *testing.T) {
	validate, err := validation.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() returned error: %v", err)
	}

	t.Run("valid workflow params", func(t *testing.T) {
		params := api.WorkflowParams{URL: "https://play.example.com", Goal: "smoke test"}
		if err := validate.Struct(params); err != nil {
			t.Fatalf("Unexpected validation error: %v", err)
		}
	})

	t.Run("errors use the json field names", func(t *testing.T) {
		params := api.WorkflowParams{URL: "not a url"}
		err := validate.Struct(params)
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			t.Fatalf("Expected validation errors, got %v", err)
		}
		fields := map[string]string{}
		for _, fe := range validationErrors {
			fields[fe.Field()] = fe.Tag()
		}
		if fields["url"] != "url" || fields["goal"] != "required" {
			t.Fatalf("Unexpected validation errors %v", fields)
		}
	})

	t.Run("feedback score is bounded", func(t *testing.T) {
		for _, score := range []int{0, 6} {
			req := api.FeedbackRequest{RunID: "abc-123", TestcaseID: "tc-1", Score: score}
			if err := validate.Struct(req); err == nil {
				t.Fatalf("Expected an error for score %d", score)
			}
		}
	})
}
