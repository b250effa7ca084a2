package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Athlete        string `json:"athlete" validate:"required,max=64"`
	OpponentTeamID *int   `json:"opponentTeamId" validate:"required,min=1,max=30"`
	BackToBackFlag *int   `json:"backToBackFlag" validate:"required,oneof=0 1"`
}

// TrainRequest is the body of POST /train. An empty athlete trains everyone.
type TrainRequest struct {
	Athlete string `json:"athlete" validate:"omitempty,max=64"`
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
