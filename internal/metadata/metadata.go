// Package metadata reads the semicolon-delimited company table that
// accompanies the report directory.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported input encodings.
const (
	EncodingISO88591    = "iso-8859-1"
	EncodingWindows1252 = "windows-1252"
	EncodingUTF8        = "utf-8"
)

// Default column labels and their positional fallbacks.
const (
	DefaultISINColumn = "ISIN"
	DefaultNameColumn = "Name"
	fallbackISINIndex = 0
	fallbackNameIndex = 2
)

// MaxLineLength bounds one line of the table. Longer lines are reported
// as malformed rows.
const MaxLineLength = 64 * 1024

// ErrLineTooLong is the cause of a RowError for a line over MaxLineLength.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Options configures how the table is read.
type Options struct {
	Encoding   string
	Delimiter  rune
	ISINColumn string
	NameColumn string
}

// DefaultOptions returns the options matching the dataset export.
func DefaultOptions() Options {
	return Options{
		Encoding:   EncodingISO88591,
		Delimiter:  ';',
		ISINColumn: DefaultISINColumn,
		NameColumn: DefaultNameColumn,
	}
}

// Row is one data line of the table. ISIN and CompanyName are trimmed;
// Fields holds every field in order, untouched.
type Row struct {
	Line        int
	ISIN        string
	CompanyName string
	Fields      []string
}

// Valid reports whether the row carries both an ISIN and a company name.
func (r Row) Valid() bool {
	return r.ISIN != "" && r.CompanyName != ""
}

// RowError reports a data line that could not be parsed. Reading can
// continue after it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// SupportedEncodings lists the accepted encoding names.
func SupportedEncodings() []string {
	return []string{EncodingISO88591, EncodingWindows1252, EncodingUTF8}
}

// IsSupportedEncoding reports whether name is accepted by Options.Encoding.
func IsSupportedEncoding(name string) bool {
	_, err := lookupEncoding(name)
	return err == nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingISO88591, "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252, nil
	case EncodingUTF8, "utf8":
		return unicode.UTF8, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// Reader iterates the data rows of a table. Each line is one row, split
// on the delimiter; quote characters have no special meaning.
type Reader struct {
	file      *os.File
	lines     *bufio.Reader
	delimiter string
	line      int
	isinIndex int
	nameIndex int
	header    []string
}

// Open opens the table at path, decodes it and consumes the header line.
// An empty file yields a Reader with no rows.
func Open(path string, opts Options) (*Reader, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}

	// A byte order mark wins over the configured encoding.
	decoder := unicode.BOMOverride(enc.NewDecoder())

	r := &Reader{
		file:      file,
		lines:     bufio.NewReader(transform.NewReader(file, decoder)),
		delimiter: string(opts.Delimiter),
		isinIndex: fallbackISINIndex,
		nameIndex: fallbackNameIndex,
	}

	header, err := r.readRecord()
	if err != nil && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, fmt.Errorf("read metadata header: %w", err)
	}
	if header != nil {
		r.header = header
		if i := columnIndex(header, opts.ISINColumn); i >= 0 {
			r.isinIndex = i
		}
		if i := columnIndex(header, opts.NameColumn); i >= 0 {
			r.nameIndex = i
		}
	}

	return r, nil
}

// readRecord returns the fields of the next non-blank line. Blank lines
// are skipped but still counted.
func (r *Reader) readRecord() ([]string, error) {
	for {
		text, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return strings.Split(text, r.delimiter), nil
	}
}

// readLine returns the next line without its line ending.
func (r *Reader) readLine() (string, error) {
	var b strings.Builder
	tooLong := false
	for {
		chunk, isPrefix, err := r.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && (b.Len() > 0 || tooLong) {
				break
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if !tooLong {
			if b.Len()+len(chunk) > MaxLineLength {
				tooLong = true
				b.Reset()
			} else {
				b.Write(chunk)
			}
		}
		if !isPrefix {
			break
		}
	}
	r.line++
	if tooLong {
		return "", &RowError{Line: r.line, Err: ErrLineTooLong}
	}
	return b.String(), nil
}

// Header returns the header fields.
func (r *Reader) Header() []string {
	return r.header
}

// Columns returns the resolved ISIN and company name column positions.
func (r *Reader) Columns() (isin, name int) {
	return r.isinIndex, r.nameIndex
}

// Next returns the next data row. It returns io.EOF after the last row
// and a *RowError for a line that cannot be read.
func (r *Reader) Next() (*Row, error) {
	record, err := r.readRecord()
	if err != nil {
		var rowErr *RowError
		if errors.Is(err, io.EOF) || errors.As(err, &rowErr) {
			return nil, err
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	return &Row{
		Line:        r.line,
		ISIN:        field(record, r.isinIndex),
		CompanyName: field(record, r.nameIndex),
		Fields:      record,
	}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll reads every data row. Unparseable lines are returned separately
// so callers can report them and carry on.
func ReadAll(path string, opts Options) ([]Row, []*RowError, error) {
	r, err := Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var rows []Row
	var rowErrs []*RowError
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rowErrs = append(rowErrs, rowErr)
				continue
			}
			return nil, nil, err
		}
		rows = append(rows, *row)
	}

	return rows, rowErrs, nil
}

func columnIndex(header []string, label string) int {
	label = strings.TrimSpace(label)
	if label == "" {
		return -1
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), label) {
			return i
		}
	}
	return -1
}

func field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}
