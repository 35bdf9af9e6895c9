package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/pkg/httperr"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

// isPgInvalidInput reports the sqlstate classes raised by malformed or
// out-of-range caller input, as opposed to infrastructure failure.
func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008", "23514":
		return true
	default:
		return false
	}
}

func storeError(err error) error {
	if httperr.IsBadRequest(err) || httperr.IsNotFound(err) {
		return err
	}
	if isPgInvalidInput(err) {
		return httperr.NewBadRequest("invalid input")
	}
	return err
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string, fallbackMsg string) {
	err = storeError(err)
	switch {
	case httperr.IsBadRequest(err):
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case httperr.IsNotFound(err):
		routing.WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		routing.WriteError(w, r, http.StatusInternalServerError, fallbackCode, fallbackMsg)
	}
}
