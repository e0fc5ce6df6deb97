package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
)

// envelope is the body of every API response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Code       string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context(), logging.Nop{}).Error(r.Context(), "encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	respondJSON(w, r, status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, envelope{StatusCode: status, Message: message, Code: code})
}

// respondError maps err onto a status code and a client-safe message.
// Server-side failures are logged with the full error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), logging.Nop{}).Error(r.Context(), "request failed", "error", err)
	}
	respondMessage(w, r, status, code, message)
}

func classify(err error) (status int, code, message string) {
	var ve *common.ValidationError
	var ue *common.AssetUploadError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed", ve.Error()
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation_failed", err.Error()
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "conflict", common.ErrConflict.Error()
	case common.IsAuthFailure(err):
		return http.StatusUnauthorized, authCode(err), authMessage(err)
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.As(err, &ue):
		return http.StatusInternalServerError, "asset_upload_failed", "error while uploading " + ue.Asset
	case errors.Is(err, common.ErrAccountPersistFailed):
		return http.StatusInternalServerError, "account_persist_failed", "something went wrong while registering the user"
	}
	return http.StatusInternalServerError, "internal", "internal server error"
}

// authCode distinguishes the authentication failures for clients that care;
// they all share the 401 status.
func authCode(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, common.ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	}
	return "unauthorized"
}

func authMessage(err error) string {
	if errors.Is(err, common.ErrInvalidCredentials) {
		return "invalid user credentials"
	}
	return "unauthorized request"
}
