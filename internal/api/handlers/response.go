package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/clinicbook/backend/internal/infrastructure/observability"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"message": message,
	})
}

// respondWithAppError maps an error onto a status code. Internal details are
// logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		fields := appErr.Fields
		if fields == nil {
			fields = apperrors.FieldErrors{}
		}
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message": appErr.Message,
			"errors":  fields,
		})
	case apperrors.ErrorTypeBadRequest:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusUnauthorized, appErr.Message)
	case apperrors.ErrorTypeExternal:
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("upstream failure")
		respondWithError(w, http.StatusBadGateway, appErr.Message)
	default:
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(field.Tag.Get("query"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var goLayoutToPHP = strings.NewReplacer("2006", "Y", "01", "m", "02", "d", "15", "H", "04", "i", "05", "s")

// requestFieldErrors runs the struct tags and returns one message per
// failing field. A non-validation failure is returned as an error.
func requestFieldErrors(req interface{}) (apperrors.FieldErrors, error) {
	fields := apperrors.FieldErrors{}
	err := validate.Struct(req)
	if err == nil {
		return fields, nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil, apperrors.NewInternalError("request validation failed", err)
	}

	for _, fe := range invalid {
		label := strings.ReplaceAll(fe.Field(), "_", " ")
		switch fe.Tag() {
		case "required":
			fields.Add(fe.Field(), "The "+label+" field is required.")
		case "uuid":
			fields.Add(fe.Field(), "The selected "+label+" is invalid.")
		case "datetime":
			fields.Add(fe.Field(), "The "+label+" field must match the format "+goLayoutToPHP.Replace(fe.Param())+".")
		default:
			fields.Add(fe.Field(), "The "+label+" field is invalid.")
		}
	}
	return fields, nil
}
