// Package csvimport reads delimited intake files row by row and validates
// each field against declared rules before anything is persisted.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\xEF\xBB\xBF"

// Parser reads a CSV file whose first line names the columns
type Parser struct {
	delimiter rune
	maxRows   int
	headers   []string
	index     map[string]int
	line      int
	reader    *csv.Reader
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithDelimiter sets the field separator. Spreadsheets exported with a
// comma decimal separator usually use ';'.
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// WithMaxRows caps the number of data rows; zero means no cap
func WithMaxRows(n int) ParserOption {
	return func(p *Parser) {
		p.maxRows = n
	}
}

// NewParser wraps r. A UTF-8 byte order mark is dropped and the first
// 4 KiB must be valid UTF-8.
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	p := &Parser{delimiter: ',', index: make(map[string]int)}
	for _, opt := range opts {
		opt(p)
	}

	buf := bufio.NewReader(r)
	head, err := buf.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if strings.HasPrefix(string(head), utf8BOM) {
		_, _ = buf.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}
	if len(strings.TrimSpace(string(head))) == 0 {
		return nil, ErrEmptyFile
	}
	if !validPrefix(head) {
		return nil, ErrInvalidEncoding
	}

	p.reader = csv.NewReader(buf)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// validPrefix is utf8.Valid that tolerates a rune cut off by the peek window
func validPrefix(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return !utf8.FullRune(b)
		}
		b = b[size:]
	}
	return true
}

// ReadHeader consumes the header line. Column names are matched case
// insensitively.
func (p *Parser) ReadHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	p.line = 1

	p.headers = make([]string, 0, len(record))
	for i, h := range record {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := p.index[name]; dup {
			return fmt.Errorf("%w: column %q appears twice", ErrInvalidHeader, name)
		}
		p.headers = append(p.headers, name)
		p.index[name] = i
	}
	if len(p.headers) == 0 {
		return ErrMissingHeader
	}
	return nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Headers returns the normalized column names in file order
func (p *Parser) Headers() []string {
	return p.headers
}

// Missing returns the required columns absent from the header
func (p *Parser) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := p.index[normalizeHeader(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data line keyed by column name
type Row struct {
	Line int
	Data map[string]string
}

// Get returns the trimmed value of column, or "" when absent
func (r *Row) Get(column string) string {
	return r.Data[column]
}

// Blank reports whether every cell is empty
func (r *Row) Blank() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Next returns the next data row, or io.EOF
func (p *Parser) Next() (*Row, error) {
	record, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, p.line+1, err)
	}
	p.line++

	row := &Row{Line: p.line, Data: make(map[string]string, len(p.headers))}
	for _, name := range p.headers {
		idx := p.index[name]
		if idx < len(record) {
			row.Data[name] = strings.TrimSpace(record[idx])
		} else {
			row.Data[name] = ""
		}
	}
	return row, nil
}

// ReadAll returns the remaining non-blank rows
func (p *Parser) ReadAll() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row.Blank() {
			continue
		}
		if p.maxRows > 0 && len(rows) == p.maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, p.maxRows)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	return rows, nil
}
