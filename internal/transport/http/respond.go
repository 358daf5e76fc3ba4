package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"live-quiz-service/internal/domain"
)

type envelope map[string]any

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names, not Go ones
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrGradingUnavailable):
		status, message = http.StatusBadRequest, "No question with correct answer set"
	default:
		logger.Errorw("request failed", "error", err)
	}
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// decode reads a JSON body into dst and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("body", "must be valid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.Invalid(fe.Field(), "is required")
	case "max":
		if fe.Kind() == reflect.String {
			return domain.Invalid(fe.Field(), "must be at most "+fe.Param()+" characters")
		}
		return domain.Invalid(fe.Field(), "must be at most "+fe.Param())
	case "min":
		return domain.Invalid(fe.Field(), "must be at least "+fe.Param())
	case "oneof":
		return domain.Invalid(fe.Field(), "must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return domain.Invalid(fe.Field(), "failed "+fe.Tag())
}
