package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/media-budget/budget"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("media_channel", func(fl validator.FieldLevel) bool {
		return budget.MediaChannel(fl.Field().String()).Valid()
	})
	v.RegisterValidation("objective", func(fl validator.FieldLevel) bool {
		return budget.Objective(fl.Field().String()).Valid()
	})
	v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		_, err := budget.ParseStrategy(fl.Field().String())
		return err == nil
	})
	return v
}

// validationErrorToText renders one field error for humans.
func validationErrorToText(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted %s", e.Field(), e.Param())
	case "media_channel":
		return fmt.Sprintf("%s must be one of %s", e.Field(), joinChannels())
	case "objective":
		return fmt.Sprintf("%s must be one of %s", e.Field(), joinObjectives())
	case "strategy":
		return fmt.Sprintf("%s must be one of %s", e.Field(), joinStrategies())
	}
	return fmt.Sprintf("%s is not valid", e.Field())
}

// requestError is a decode or validation failure with per-field messages.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string { return e.msg }

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &requestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &requestError{msg: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		text := validationErrorToText(fe)
		fields[fe.Field()] = text
		msgs = append(msgs, text)
	}
	return &requestError{msg: strings.Join(msgs, ", "), fields: fields}
}

func joinChannels() string {
	parts := make([]string, len(budget.MediaChannels))
	for i, c := range budget.MediaChannels {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func joinObjectives() string {
	parts := make([]string, len(budget.Objectives))
	for i, o := range budget.Objectives {
		parts[i] = string(o)
	}
	return strings.Join(parts, ", ")
}

func joinStrategies() string {
	parts := make([]string, len(budget.Strategies))
	for i, s := range budget.Strategies {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
