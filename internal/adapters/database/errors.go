package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqConnectionException = "08"
	pqInsufficientRes     = "53"
	pqAdminShutdown       = "57P01"
	pqCannotConnectNow    = "57P03"
	pqQueryCanceled       = "57014"
)

// classify maps driver failures onto the application error taxonomy.
// Unique violations become conflict errors carrying conflictMsg.
func classify(message, conflictMsg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewUnavailableError(message, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation && conflictMsg != "":
			return &apperrors.AppError{Type: apperrors.ErrorTypeConflict, Message: conflictMsg, Err: err}
		case pqErr.Code.Class() == pqConnectionException,
			pqErr.Code.Class() == pqInsufficientRes,
			pqErr.Code == pqAdminShutdown,
			pqErr.Code == pqCannotConnectNow,
			pqErr.Code == pqQueryCanceled:
			return apperrors.NewUnavailableError(message, err)
		}
		return apperrors.NewInternalError(message, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return apperrors.NewUnavailableError(message, err)
	}

	return apperrors.NewInternalError(message, err)
}
