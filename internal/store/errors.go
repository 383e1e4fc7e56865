package store

// Op constants name backend operations for error context.
const (
	OpUpsert = "upsert"
	OpQuery  = "query"
	OpStats  = "stats"
	OpPing   = "ping"
	OpCreate = "create-index"
)

// Error wraps an underlying driver error with the operation name.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
