// Package fail maps service errors onto HTTP status codes and the JSON
// response envelope. Anything outside the taxonomy is a 500 with the
// message elided.
package fail

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"gatepass/entity"
	"gatepass/lib/api/response"
)

func Render(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, Status(err))
	render.JSON(w, r, response.Error(Message(err)))
}

func Status(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyUsed),
		errors.Is(err, entity.ErrAlreadyVerified),
		errors.Is(err, entity.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, entity.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
