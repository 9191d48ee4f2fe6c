package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/placefinder/placefinder/internal/api/models"
	"github.com/placefinder/placefinder/internal/api/response"
)

// maxBodyBytes caps request bodies; every request model is a few short strings.
const maxBodyBytes = 16 << 10

// Validator checks request models against their validate tags and reports
// fields by their JSON names.
type Validator struct {
	v *validator.Validate
}

// rules are the custom validate tags request models may use.
var rules = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
}

// NewValidator creates a Validator with the custom rules registered. It
// panics if a rule cannot be registered, which only a bad tag or a nil rule
// can cause.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := registerRules(v, rules); err != nil {
		panic(fmt.Errorf("handler: %w", err))
	}
	return &Validator{v: v}
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

// Struct validates s.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// decodeJSON reads the body into dst and validates it. On failure it writes
// a 400 problem and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, val *Validator, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is required", nil)
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body too large", nil)
		default:
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}

	if err := val.Struct(dst); err != nil {
		response.BadRequest(w, r, "request validation failed", models.FieldErrorsFrom(err))
		return false
	}
	return true
}
