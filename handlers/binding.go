package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"rollcall-server/apperr"
)

const maxJSONBodyBytes = 1 << 20

var registerValidatorsOnce sync.Once

// registerValidators adds the custom tags used by the request DTOs and makes
// validation errors report JSON field names.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validateEmail(email string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.Var(email, "email"); err != nil {
		return apperr.InvalidInput("email must be a valid email address")
	}
	return nil
}

// bindJSON decodes a JSON object into dst. Keys may be camelCase or
// snake_case; when both spellings are sent the camelCase one wins.
func bindJSON(c *gin.Context, dst any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBodyBytes+1))
	if err != nil {
		return apperr.InvalidInput("could not read request body")
	}
	if len(body) > maxJSONBodyBytes {
		return apperr.InvalidInput("request body is too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.InvalidInput("request body is required")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apperr.InvalidInput("request body must be a JSON object")
	}
	normalized, err := json.Marshal(normalizeKeys(raw))
	if err != nil {
		return fmt.Errorf("re-encode request body: %w", err)
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		return decodeError(err)
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func normalizeKeys(raw map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		if camelKey(key) == key {
			out[key] = value
		}
	}
	for key, value := range raw {
		camel := camelKey(key)
		if _, seen := out[camel]; !seen {
			out[camel] = value
		}
	}
	return out
}

// camelKey turns student_id into studentId; other keys pass through.
func camelKey(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Newf(apperr.ErrInvalidInput, "%s has the wrong type", typeErr.Field)
	}
	return apperr.InvalidInput("malformed request body")
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.InvalidInput("invalid request body")
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return apperr.Newf(apperr.ErrInvalidInput, "%s is required", field)
	case "email":
		return apperr.Newf(apperr.ErrInvalidInput, "%s must be a valid email address", field)
	case "max":
		return apperr.Newf(apperr.ErrInvalidInput, "%s must be at most %s characters", field, fe.Param())
	case "gte":
		return apperr.Newf(apperr.ErrInvalidInput, "%s must be at least %s", field, fe.Param())
	default:
		return apperr.Newf(apperr.ErrInvalidInput, "%s is invalid", field)
	}
}

// pathID parses a positive integer route parameter.
func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Newf(apperr.ErrInvalidInput, "invalid %s", name)
	}
	return uint(id), nil
}

// trimmedOrNil returns nil for absent or blank values so they count as "not supplied".
func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
