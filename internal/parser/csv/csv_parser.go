// Package csv parses delimited text into a column-typed table.Table.
//
// Unlike a lenient ETL reader, the parser here fails the whole input on the
// first structural problem: a partially loaded dataset must never feed the
// aggregation stages. Every failure wraps table.ErrMalformedInput (or
// table.ErrUnknownColumn for configuration mistakes) so callers can classify
// it with errors.Is.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"lodging/internal/parser"
	"lodging/internal/table"
)

// Options configures the CSV parser. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// LazyQuotes tolerates bare quotes inside unquoted fields.
	LazyQuotes bool

	// HeaderMap maps source header names to canonical column names. Keys are
	// matched after BOM stripping and trimming, before lowercasing.
	HeaderMap map[string]string

	// Numeric lists (canonical) column names parsed as float64. Empty cells
	// and "nan" become missing; anything else that is not a number fails the
	// parse.
	Numeric []string

	// Encoding names the input character set: "utf-8" (default), "latin1"
	// (ISO-8859-1) or "windows-1252".
	Encoding string

	// NormalizeUnicode composes text to NFC so that visually identical labels
	// ("Cuauhtémoc" precomposed vs. combining accent) compare equal.
	NormalizeUnicode bool
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs and holds no per-parse state.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var _ parser.Parser = (*Parser)(nil)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse reads the header row and every data row from r and returns the table.
// Row width must equal header width on every line.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	dec, err := decoderFor(p.opt.Encoding)
	if err != nil {
		return nil, err
	}
	var chain []transform.Transformer
	if dec != nil {
		chain = append(chain, dec)
	}
	if p.opt.NormalizeUnicode {
		chain = append(chain, norm.NFC)
	}
	if len(chain) > 0 {
		r = transform.NewReader(r, transform.Chain(chain...))
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.LazyQuotes = p.opt.LazyQuotes
	// Width is enforced below so the error names the expected header width.
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv header: empty input: %w", table.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", readError(1, err))
	}
	headers := normalizeHeaders(h, p.opt)

	cols := make([]table.Column, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for i, name := range headers {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("read csv header: duplicate column %q: %w", name, table.ErrMalformedInput)
		}
		seen[name] = struct{}{}
		cols[i] = table.Column{Name: name, Kind: table.String}
	}
	for _, name := range p.opt.Numeric {
		found := false
		for i := range cols {
			if cols[i].Name == name {
				cols[i].Kind = table.Float
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("numeric column %q not in header: %w", name, table.ErrUnknownColumn)
		}
	}

	var rows []table.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(line, err)
		}
		if len(rec) != len(cols) {
			return nil, fmt.Errorf("line %d: incorrect number of fields (expected %d, got %d): %w",
				line, len(cols), len(rec), table.ErrMalformedInput)
		}

		row := make(table.Row, len(rec))
		for i, val := range rec {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			v, err := cellValue(cols[i].Kind, val)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, cols[i].Name, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return table.New(cols, rows)
}

// cellValue converts a raw field to the cell representation for kind.
// readError classifies a csv.Reader failure. Only a *csv.ParseError is a
// property of the data; anything else came from the underlying reader (a
// dropped connection, a body read past the client timeout) and means the
// source could not be read to the end.
func readError(line int, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("line %d: %v: %w", pe.Line, pe.Err, table.ErrMalformedInput)
	}
	if errors.Is(err, table.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("line %d: %w", line, errors.Join(table.ErrSourceUnavailable, err))
}

func cellValue(kind table.Kind, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	if kind == table.String {
		return s, nil
	}
	if strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number %q: %w", s, table.ErrMalformedInput)
	}
	return f, nil
}

// CheckEncoding reports whether name is an encoding the parser can decode.
func CheckEncoding(name string) error {
	_, err := decoderFor(name)
	return err
}

// decoderFor maps an encoding name to an x/text decoder; nil means the input
// is already UTF-8.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-8-bom", "utf-8-sig":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}

// normalizeHeaders produces canonical header keys using HeaderMap (when
// provided) and simple normalization (lowercase, spaces to underscores). It
// also strips a UTF-8 BOM from the first cell if present. Empty header cells
// are named col_N.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		if c == "" {
			res[i] = fmt.Sprintf("col_%d", i)
			continue
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
