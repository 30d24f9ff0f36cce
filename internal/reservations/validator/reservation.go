package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"seatgrid/pkg/logger"
	"seatgrid/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	maxSeats int
}

func NewReservationValidator(log *logger.Logger, maxSeats int) *ReservationValidator {
	v := validator.New()

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
		maxSeats: maxSeats,
	}
}

// ValidateIntent checks a reservation intent before it enters the
// pipeline. Structural checks come from struct tags; the duplicate and
// batch-size rules need the whole slice.
func (v *ReservationValidator) ValidateIntent(intent *model.ReservationIntent) error {
	if err := v.validate.Struct(intent); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if len(intent.SeatIDs) > v.maxSeats {
		return ValidationErrors{
			ValidationError{
				Field:   "SeatIDs",
				Message: fmt.Sprintf("seat count (%d) exceeds maximum per reservation (%d)", len(intent.SeatIDs), v.maxSeats),
			},
		}
	}

	seen := make(map[string]struct{}, len(intent.SeatIDs))
	for _, id := range intent.SeatIDs {
		if _, dup := seen[id]; dup {
			return ValidationErrors{
				ValidationError{
					Field:   "SeatIDs",
					Message: fmt.Sprintf("duplicate seat ID: %s", id),
				},
			}
		}
		seen[id] = struct{}{}
	}

	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +972501234567)", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
