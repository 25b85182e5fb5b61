package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError carries per-field messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		field := err.Namespace()
		switch err.Tag() {
		case "required", "required_without":
			fields[field] = fmt.Sprintf("%s is required", err.Field())
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		case "lte":
			fields[field] = fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		default:
			fields[field] = fmt.Sprintf("%s failed on '%s'", err.Field(), err.Tag())
		}
	}
	return &ValidationError{Message: "request validation failed", Fields: fields}
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newValidationError(verrs)
		}
		return err
	}
	return nil
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		var details map[string]any
		if len(verr.Fields) > 0 {
			details = make(map[string]any, len(verr.Fields))
			for k, v := range verr.Fields {
				details[k] = v
			}
		}
		s.fail(w, http.StatusBadRequest, verr.Message, details)
		return
	}
	s.fail(w, http.StatusBadRequest, err.Error(), nil)
}
