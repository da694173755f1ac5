package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
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

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Balance kind validation
	validate.RegisterValidation("balance_kind", func(fl validator.FieldLevel) bool {
		kind := fl.Field().String()
		validKinds := []string{"normal", "bonus", ""}
		for _, k := range validKinds {
			if kind == k {
				return true
			}
		}
		return false
	})

	// Payment provider validation
	validate.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		provider := fl.Field().String()
		validProviders := []string{"mercadopago", "stripe"}
		for _, p := range validProviders {
			if provider == p {
				return true
			}
		}
		return false
	})

	// Game account/character name validation: the game database stores
	// plain alphanumeric names.
	validate.RegisterValidation("game_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" || len(name) > 35 {
			return false
		}
		for _, c := range name {
			ok := c >= 'a' && c <= 'z' ||
				c >= 'A' && c <= 'Z' ||
				c >= '0' && c <= '9' ||
				c == '_'
			if !ok {
				return false
			}
		}
		return true
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
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		case "balance_kind":
			errors[field] = "Invalid balance kind. Must be: normal or bonus"
		case "provider":
			errors[field] = "Invalid provider. Must be: mercadopago or stripe"
		case "game_name":
			errors[field] = "Invalid name. Use letters, digits and underscore only"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
