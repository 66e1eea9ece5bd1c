package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/diewo77/gesappro/internal/apperr"
)

// requestLog prefers the request-scoped logger the middleware put in
// the context, so handler lines carry the same request_id as the
// access log entry. Falls back to the handler's own logger.
func requestLog(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the user-facing message. Storage and unknown
// errors stay generic; details belong in the logs.
func messageFor(err error) string {
	var v *apperr.ValidationError
	if errors.As(err, &v) {
		return v.Msg
	}
	var n *apperr.NotFoundError
	if errors.As(err, &n) {
		return n.Error()
	}
	var c *apperr.ConflictError
	if errors.As(err, &c) {
		return c.Msg
	}
	return "une erreur interne est survenue"
}

func queryUint(r *http.Request, key string) uint {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return uint(n)
		}
	}
	return 0
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
