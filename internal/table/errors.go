package table

import "errors"

// Error taxonomy shared by every pipeline stage. Stages wrap these with
// context (fmt.Errorf("...: %w", ErrX)); callers match with errors.Is.
var (
	// ErrSourceUnavailable: file missing, network failure, non-2xx status, timeout.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedInput: structural parse failure (width mismatch, bad quoting,
	// non-numeric cell in a numeric column, missing header).
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnknownColumn: configuration references a column that is not present.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidThreshold: a filter bound that is NaN or infinite.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrColumnKind: an operation was applied to a column of the wrong kind,
	// e.g. a mean over a string column.
	ErrColumnKind = errors.New("column kind mismatch")

	// ErrDuplicateColumn: a projection or derivation would produce two
	// columns with the same name.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Classify returns the taxonomy name of err, or "internal" when err does not
// wrap one of the sentinels above. Presenters use it to pick a message.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, ErrMalformedInput):
		return "MalformedInput"
	case errors.Is(err, ErrUnknownColumn):
		return "UnknownColumn"
	case errors.Is(err, ErrInvalidThreshold):
		return "InvalidThreshold"
	case errors.Is(err, ErrColumnKind):
		return "ColumnKind"
	case errors.Is(err, ErrDuplicateColumn):
		return "DuplicateColumn"
	default:
		return "internal"
	}
}
