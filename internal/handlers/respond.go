package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/httpx"
	"github.com/diewo77/go-duedates/internal/services"
)

// actor returns the firm member attached by the auth gate, writing a 401
// when the request carries none.
func actor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	m, ok := auth.MemberFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return services.Actor{}, false
	}
	return services.Actor{FirmID: m.FirmID, UserID: m.UserID}, true
}

// decode reads a JSON body into dst. An empty body is reported as required.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := httpx.DecodeJSON(r, dst)
	if err == nil {
		return true
	}
	if errors.Is(err, httpx.ErrEmptyBody) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"body": "required"})
		return false
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{typeErr.Field: "invalid_type"})
		return false
	}
	httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
	return false
}

// writeError translates a service error into its HTTP status and body.
func writeError(w http.ResponseWriter, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.Printf("internal error: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	switch svcErr.Kind {
	case services.KindUnauthorized:
		httpx.JSONError(w, http.StatusUnauthorized, string(svcErr.Kind), nil)
	case services.KindForbidden:
		httpx.JSONError(w, http.StatusForbidden, string(svcErr.Kind), nil)
	case services.KindNotFound:
		httpx.JSONError(w, http.StatusNotFound, string(svcErr.Kind), map[string]string{"message": svcErr.Message})
	case services.KindValidation:
		httpx.JSONError(w, http.StatusBadRequest, string(svcErr.Kind), svcErr.Fields)
	case services.KindQuotaExceeded:
		httpx.JSONError(w, http.StatusPaymentRequired, string(svcErr.Kind), svcErr.Quota)
	case services.KindConflict:
		httpx.JSONError(w, http.StatusConflict, string(svcErr.Kind), nil)
	case services.KindTransactionAborted:
		log.Printf("transaction aborted: %v", svcErr.Err)
		httpx.JSONError(w, http.StatusServiceUnavailable, string(svcErr.Kind), map[string]bool{"retryable": true})
	default:
		log.Printf("unmapped service error: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func pathUint(r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
