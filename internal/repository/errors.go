package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrParentRowGone signals that an insert referenced a row that was deleted
// between the caller's read and the write, e.g. an audio file removed while
// its transcription was still running.
var ErrParentRowGone = errors.New("referenced row no longer exists")

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
