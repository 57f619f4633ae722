// Package table holds the columnar datasets read from HMMcopy output files.
//
// Files are parsed into a gota DataFrame and converted to typed columns.
// Every column carries a kind (int, float, bool or string). Missing cells are
// stored as a float NaN regardless of the column kind, which is the single
// absent marker the rest of the server strips before serialization.
package table

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	// ErrMissingColumn is returned when a required column is not present.
	ErrMissingColumn = errors.New("missing column")
	// ErrEmpty is returned when a source has no header or no data rows.
	ErrEmpty = errors.New("empty table")
)

// Kind is the inferred type of a column or value.
type Kind uint8

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "float"
	}
}

// Value is a single typed cell.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Num  float64
	Bool bool
}

// Missing returns the absent value.
func Missing() Value {
	return Value{Kind: KindFloat, Num: math.NaN()}
}

// StringValue, IntValue, FloatValue and BoolValue build typed values.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Num: f} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// IsNaN reports whether v is the absent marker.
func (v Value) IsNaN() bool {
	return v.Kind == KindFloat && math.IsNaN(v.Num)
}

// Float returns v as a float64 when it is numeric and present.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		if math.IsNaN(v.Num) {
			return 0, false
		}
		return v.Num, true
	}
	return 0, false
}

// Int64 returns v as an int64 when it is an integer or an integral float.
func (v Value) Int64() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) || v.Num != math.Trunc(v.Num) {
			return 0, false
		}
		return int64(v.Num), true
	}
	return 0, false
}

// String formats v the way it appeared in the source. Absent values format
// as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		if math.IsNaN(v.Num) {
			return ""
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
}

// Interface returns the plain Go value (string, int64, float64 or bool).
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindBool:
		return v.Bool
	default:
		return v.Num
	}
}

// Column is a named, typed column.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Table is an ordered set of equal-length columns.
type Table struct {
	Name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table from columns. All columns must have the same length.
func New(name string, columns ...*Column) (*Table, error) {
	t := &Table{
		Name:    name,
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, fmt.Errorf("%s: column %q has %d rows, expected %d", name, c.Name, len(c.Values), t.rows)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q", name, c.Name)
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the column names in source order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column or an error wrapping ErrMissingColumn.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", t.Name, ErrMissingColumn, name)
	}
	return t.columns[i], nil
}

// Require checks that every named column is present, reporting all that
// are missing in a single error.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, strconv.Quote(n))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w %s", t.Name, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// MissingValues are the cell contents read as absent. They are the NA
// markers pandas writes and reads by default, plus gota's own "<nil>".
var MissingValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a",
	"nan", "null", "<nil>",
}

// ReadOptions controls CSV parsing.
type ReadOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// StringColumns are kept as strings without type inference.
	StringColumns []string
}

var utf8BOM = []byte("\ufeff")

// ReadCSV parses a delimited text source with a header row.
func ReadCSV(name string, r io.Reader, opts ReadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if len(head) == 0 && err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	if bytes.Equal(head, utf8BOM) {
		// Left by some spreadsheet exports.
		br.Discard(len(utf8BOM))
	}

	comma := opts.Comma
	if comma == 0 {
		comma = ','
	}
	forced := make(map[string]series.Type, len(opts.StringColumns))
	for _, c := range opts.StringColumns {
		forced[c] = series.String
	}

	df := dataframe.ReadCSV(br,
		dataframe.WithDelimiter(comma),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(MissingValues),
		dataframe.WithTypes(forced),
	)
	if df.Err != nil {
		// gota reports a header without rows only through its message.
		if strings.Contains(df.Err.Error(), "empty DataFrame") {
			return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
		}
		return nil, fmt.Errorf("%s: %w", name, df.Err)
	}
	return FromDataFrame(name, df, opts.StringColumns...)
}

// FromDataFrame converts df into a Table. Columns named in keepStrings are
// not retyped.
func FromDataFrame(name string, df dataframe.DataFrame, keepStrings ...string) (*Table, error) {
	keep := make(map[string]bool, len(keepStrings))
	for _, c := range keepStrings {
		keep[c] = true
	}

	names := df.Names()
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i] = fromSeries(df.Col(n), keep[n])
	}
	return New(name, cols...)
}

// fromSeries converts one gota series. gota only detects lower-case
// booleans, so string columns holding nothing but true/false in any case
// become bool columns, and columns with no present value become float.
func fromSeries(s series.Series, keepString bool) *Column {
	c := &Column{Name: s.Name, Values: make([]Value, s.Len())}
	switch s.Type() {
	case series.Int:
		c.Kind = KindInt
	case series.Float:
		c.Kind = KindFloat
	case series.Bool:
		c.Kind = KindBool
	default:
		c.Kind = KindString
		if !keepString {
			c.Kind = refineStringKind(s)
		}
	}

	for i := range c.Values {
		e := s.Elem(i)
		if e.IsNA() {
			c.Values[i] = Missing()
			continue
		}
		switch c.Kind {
		case KindInt:
			n, err := e.Int()
			if err != nil {
				c.Values[i] = Missing()
				continue
			}
			c.Values[i] = IntValue(int64(n))
		case KindFloat:
			// Non-finite numbers cannot be encoded as JSON and carry no
			// usable measurement.
			f := e.Float()
			if math.IsInf(f, 0) {
				f = math.NaN()
			}
			c.Values[i] = FloatValue(f)
		case KindBool:
			c.Values[i] = BoolValue(strings.EqualFold(e.String(), "true"))
		default:
			c.Values[i] = StringValue(e.String())
		}
	}
	return c
}

func refineStringKind(s series.Series) Kind {
	present, bools := 0, 0
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		present++
		if v := e.String(); strings.EqualFold(v, "true") || strings.EqualFold(v, "false") {
			bools++
		}
	}
	switch {
	case present == 0:
		return KindFloat
	case bools == present:
		return KindBool
	default:
		return KindString
	}
}
