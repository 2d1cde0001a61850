// Package parser defines the contract shared by input format parsers.
package parser

import (
	"io"

	"lodging/internal/table"
)

// Parser turns a byte stream into a table. Implementations fail the whole
// input on the first structural error.
type Parser interface {
	Parse(r io.Reader) (*table.Table, error)
}
