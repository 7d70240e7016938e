package importer

// error_messages.go maps technical errors to messages a user can act on.
//
// Every message carries a code that can be quoted to support:
//
// # Database Errors (DB001-DB006)
//
//	DB001 - Duplicate: a column or label with this name already exists
//	DB002 - Foreign key: the board, column or user referenced does not exist
//	DB003 - Connection refused: unable to connect to database
//	DB004 - Connection reset: database connection was interrupted
//	DB005 - Timeout: operation timed out
//	DB006 - Deadlock: database was busy with conflicting operations
//
// # Parse Errors (PARSE001-PARSE003)
//
//	PARSE001 - Unrecognized JSON: neither a Trello nor a task export
//	PARSE002 - Invalid JSON: the file is not valid JSON
//	PARSE003 - Unknown format: the requested import format is not supported
//
// # Import Errors (IMP001-IMP005)
//
//	IMP001 - Too many imports: all import slots are busy
//	IMP002 - Not found: the import run does not exist or has expired
//	IMP003 - No column: the board has no column to place tasks in
//	IMP004 - Not cancellable: bulk imports run to completion
//	IMP005 - Column setup: columns could not be created
//
// # File and Rate Errors
//
//	FILE001 - File too large
//	RATE001 - Too many requests

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// UserMessage is a user-friendly description of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorSentinel struct {
	err error
	msg UserMessage
}

// errorSentinels are checked with errors.Is before any pattern matching.
var errorSentinels = []errorSentinel{
	{ErrTooManyImports, UserMessage{
		Message: "Too many imports are running",
		Action:  "Please try again in a few moments",
		Code:    "IMP001",
	}},
	{ErrRunNotFound, UserMessage{
		Message: "Import not found",
		Action:  "The import may have finished a while ago; start a new one",
		Code:    "IMP002",
	}},
	{ErrNoDefaultColumn, UserMessage{
		Message: "This board has no columns to import into",
		Action:  "Add a column to the board or map every task to a column",
		Code:    "IMP003",
	}},
	{ErrNotCancellable, UserMessage{
		Message: "Bulk imports cannot be cancelled",
		Action:  "Wait for the import to finish",
		Code:    "IMP004",
	}},
	{ErrUnrecognizedJSON, UserMessage{
		Message: "This JSON file is not a Trello export or task list",
		Action:  "Export the board from Trello as JSON, or use a {\"tasks\": [...]} file",
		Code:    "PARSE001",
	}},
	{ErrUnknownFormat, UserMessage{
		Message: "This import format is not supported",
		Action:  "Use csv, json, trello, custom or text",
		Code:    "PARSE003",
	}},
	{board.ErrDuplicate, UserMessage{
		Message: "A column or label with this name already exists",
		Action:  "Map the source column to the existing one and retry",
		Code:    "DB001",
	}},
	{board.ErrInvalidEntity, UserMessage{
		Message: "Referenced board, column or user does not exist",
		Action:  "Refresh the board and try again",
		Code:    "DB002",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Import setup
	{
		pattern: "create columns",
		msg: UserMessage{
			Message: "Columns for the import could not be created",
			Action:  "Nothing was imported; please try again",
			Code:    "IMP005",
		},
	},

	// Database constraints
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A column or label with this name already exists",
			Action:  "Map the source column to the existing one and retry",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced board, column or user does not exist",
			Action:  "Refresh the board and try again",
			Code:    "DB002",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing fewer tasks or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing fewer tasks or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},

	// Input
	{
		pattern: "decode trello export",
		msg: UserMessage{
			Message: "The file is not valid JSON",
			Action:  "Check the export file is complete and not truncated",
			Code:    "PARSE002",
		},
	},
	{
		pattern: "decode custom export",
		msg: UserMessage{
			Message: "The file is not valid JSON",
			Action:  "Check the export file is complete and not truncated",
			Code:    "PARSE002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the export into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as a single line for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
