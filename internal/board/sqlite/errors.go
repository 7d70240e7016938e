package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MapError wraps SQLite constraint failures with board sentinels.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", board.ErrNotFound, err)
	}

	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", board.ErrDuplicate, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %v", board.ErrInvalidEntity, err)
	}

	// Primary result code only: fall back to the message.
	if sqlErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		if strings.Contains(sqlErr.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %v", board.ErrDuplicate, err)
		}
		return fmt.Errorf("%w: %v", board.ErrInvalidEntity, err)
	}
	return err
}
