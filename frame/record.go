package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FromRecord builds a one-row table from a JSON object. Keys keep the order
// in which they appear in the document. Numbers and booleans are stored as
// their text form, null as a missing cell.
func FromRecord(raw json.RawMessage) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("record must be a JSON object")
	}

	var (
		columns []string
		cells   []Cell
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		key := keyTok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", key, err)
		}
		c, err := cellFromJSON(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		columns = append(columns, key)
		cells = append(cells, c)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	t, err := New(columns)
	if err != nil {
		return nil, err
	}
	if err := t.AppendRow(cells); err != nil {
		return nil, err
	}
	return t, nil
}

func cellFromJSON(value interface{}) (Cell, error) {
	switch v := value.(type) {
	case nil:
		return Null(), nil
	case string:
		return Str(v), nil
	case json.Number:
		return Str(v.String()), nil
	case bool:
		return Str(strconv.FormatBool(v)), nil
	default:
		return Cell{}, fmt.Errorf("unsupported value of type %T", value)
	}
}
