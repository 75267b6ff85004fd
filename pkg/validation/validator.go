package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	customerGrades      = []string{"A", "B", "C", "D"}
	channels            = []string{"card_present", "card_not_present"}
	transactionTypes    = []string{"P2P_SEND", "CASHOUT", "CASHIN", "MERCHPAY", "AIRTIME_RECHARGE", "DSTV_PAYMENT"}
	transactionStatuses = []string{"approved", "declined", "reversed", "chargeback"}
)

func init() {
	Validate = validator.New()
	Validate.RegisterTagNameFunc(jsonFieldName)

	// Register custom validators
	_ = Validate.RegisterValidation("customer_grade", oneOf(customerGrades))
	_ = Validate.RegisterValidation("channel", oneOf(channels))
	_ = Validate.RegisterValidation("transaction_type", oneOf(transactionTypes))
	_ = Validate.RegisterValidation("transaction_status", oneOf(transactionStatuses))
	_ = Validate.RegisterValidation("not_future", validateNotFuture)
}

// ValidationError collects per-field messages
type ValidationError struct {
	Errors map[string]string
}

// NewValidationError converts validator errors into field messages
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		ve.AddError(fe.Field(), messageFor(fe))
	}
	return ve
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AddError records a message for a field
func (e *ValidationError) AddError(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}
	e.Errors[field] = message
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// GetFieldError returns the message recorded for field
func (e *ValidationError) GetFieldError(field string) (string, bool) {
	msg, ok := e.Errors[field]
	return msg, ok
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// jsonFieldName reports fields by their json name so messages match the request body
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "ip":
		return "must be a valid IP address"
	case "customer_grade":
		return "must be one of " + strings.Join(customerGrades, ", ")
	case "channel":
		return "must be one of " + strings.Join(channels, ", ")
	case "transaction_type":
		return "must be one of " + strings.Join(transactionTypes, ", ")
	case "transaction_status":
		return "must be one of " + strings.Join(transactionStatuses, ", ")
	case "not_future":
		return "must not be in the future"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return contains(values, fl.Field().String())
	}
}

// validateNotFuture allows a small clock skew between feed and server
func validateNotFuture(fl validator.FieldLevel) bool {
	ts, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !ts.After(time.Now().Add(5 * time.Minute))
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
