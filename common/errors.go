package common

import (
	"encoding/json"
	"go-trip-api/logger"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AppError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
	Err      error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewRedirectError builds a See Other response pointing the client at location.
func NewRedirectError(message, location string, err error) *AppError {
	return &AppError{
		Code:     http.StatusSeeOther,
		Message:  message,
		Location: location,
		Err:      err,
	}
}

func (e *AppError) Send(w http.ResponseWriter) {
	if e.Err != nil {
		entry := logger.Log.WithFields(logrus.Fields{
			"status_code":    e.Code,
			"internal_error": e.Err.Error(),
		})
		if e.Code >= http.StatusInternalServerError {
			entry.Error(e.Message)
		} else {
			entry.Info(e.Message)
		}
	}

	if e.Location != "" {
		w.Header().Set("Location", e.Location)
	}
	WriteJSON(w, e.Code, e)
}

// WriteJSON writes payload as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
