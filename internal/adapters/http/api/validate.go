package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
}

// readAndValidateRequest decodes the JSON body into req, applies default
// values and validates it. Failures are ErrBadRequest kinds.
func readAndValidateRequest(w http.ResponseWriter, r *http.Request, op string, req any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	// an empty body decodes as an empty object; required fields still fail
	if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return WrapKind(op, ErrBadRequest, err)
	}
	return applyAndValidate(r, op, req)
}

func applyAndValidate(r *http.Request, op string, req any) error {
	if err := defaults.Set(req); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := validate.StructCtx(r.Context(), req); err != nil {
		return WrapKind(op, ErrBadRequest, validationMessage(err))
	}
	return nil
}

// jsonFieldName reports fields by their JSON name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func validationMessage(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be a number", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
