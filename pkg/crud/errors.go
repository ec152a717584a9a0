package crud

import "errors"

var (
	// ErrNotFound means no row matched the requested id under the implied
	// status scope.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidParam marks client errors in query parameters: unknown
	// filter column, unsupported operator, malformed scalar value, or
	// out-of-range pagination. Requests failing this way are rejected
	// before any query executes.
	ErrInvalidParam = errors.New("invalid query parameter")

	// ErrUnknownSortColumn indicates a sort directive referencing a column
	// the descriptor does not know. It is a configuration-level fault, not
	// a client error: sort columns are not mechanically generated the way
	// filter parameters are, so a miss points at a route-generation bug.
	ErrUnknownSortColumn = errors.New("unknown sort column")
)
