package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Credit type validation
	validate.RegisterValidation("credit_type", func(fl validator.FieldLevel) bool {
		creditType := fl.Field().String()
		validTypes := []string{"free_hours", "bonus_hours"}
		for _, t := range validTypes {
			if creditType == t {
				return true
			}
		}
		return false
	})

	// Reservation status validation
	validate.RegisterValidation("reservation_status", func(fl validator.FieldLevel) bool {
		status := fl.Field().String()
		validStatuses := []string{"pending", "confirmed", ""}
		for _, s := range validStatuses {
			if status == s {
				return true
			}
		}
		return false
	})

	// Recurrence rule validation, must parse as a standard RRULE
	validate.RegisterValidation("rrule", func(fl validator.FieldLevel) bool {
		_, err := rrule.StrToRRule(fl.Field().String())
		return err == nil
	})

	// Wall-clock time validation (HH:MM)
	validate.RegisterValidation("wallclock", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 5 || s[2] != ':' {
			return false
		}
		hh := s[:2]
		mm := s[3:]
		if hh < "00" || hh > "23" {
			return false
		}
		return mm >= "00" && mm <= "59"
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "credit_type":
			errors[field] = "Invalid credit type. Must be: free_hours or bonus_hours"
		case "reservation_status":
			errors[field] = "Invalid status. Must be: pending or confirmed"
		case "rrule":
			errors[field] = "Invalid recurrence rule"
		case "wallclock":
			errors[field] = "Invalid time. Use HH:MM"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
