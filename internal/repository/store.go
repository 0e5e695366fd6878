package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

// wrapStoreErr normalises driver failures. Connectivity and timeout classes
// become STORE_UNAVAILABLE so callers can apply the read-retry policy;
// sql.ErrNoRows passes through for not-found mapping; everything else is
// wrapped with the operation name.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if isTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, fmt.Sprintf("%s: store unavailable", op))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
