package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
)

// invalid_text_representation: a malformed UUID reached a uuid column.
const sqlStateInvalidText = "22P02"

// mapQueryError classifies driver errors caused by caller input. Both registered drivers are covered.
func mapQueryError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateInvalidText {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed identifier")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateInvalidText {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed identifier")
	}
	return err
}
