package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoColumns is returned when a CSV input has no header row.
var ErrNoColumns = errors.New("no columns to parse from input")

// ReadCSV parses a delimited table whose first record is the header.
// Input may be UTF-8 (with or without BOM) or UTF-16 with a BOM. Empty
// fields become missing cells, short rows are padded with missing cells and
// rows longer than the header are rejected. Duplicate header names get a
// ".N" suffix and blank ones are named "Unnamed: <index>".
func ReadCSV(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t, err := New(headerNames(header))
	if err != nil {
		return nil, err
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(record) > len(t.columns) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", line, len(t.columns), len(record))
		}
		cells := make([]Cell, len(t.columns))
		for j, field := range record {
			if field != "" {
				cells[j] = Str(field)
			}
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for j, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(j)
		}
		candidate := name
		for n := 1; seen[candidate]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		seen[candidate] = true
		names[j] = candidate
	}
	return names
}

// WriteCSV writes t with a header row and no index column. Missing cells are
// written as empty fields.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.columns); err != nil {
		return err
	}
	record := make([]string, len(t.columns))
	for _, row := range t.rows {
		for j, c := range row {
			record[j] = c.Value
			if !c.Valid {
				record[j] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
