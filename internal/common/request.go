package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// ErrInvalidPayload is returned when a request body cannot be decoded.
var ErrInvalidPayload = NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, nil)

// ErrValidation is returned when a decoded body fails validation.
var ErrValidation = NewAppError("VALIDATION_ERROR", "validation failed", http.StatusUnprocessableEntity, nil)

// DecodeJSON reads the request body into dst and validates it with v. An
// empty body decodes as the zero value.
func DecodeJSON(r *http.Request, dst any, v *validator.Validate) error {
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			out := *ErrInvalidPayload
			out.Err = err
			return &out
		}
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[lowerFirst(fe.Field())] = fe.Tag()
			}
			return ErrValidation.WithDetails(fields)
		}
		out := *ErrValidation
		out.Err = err
		return &out
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
