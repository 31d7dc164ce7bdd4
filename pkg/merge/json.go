package merge

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/iwvelando/indexcast/pkg/period"
)

var (
	ErrMalformedTable = errors.New("malformed merged table")
)

// MarshalJSON writes the table as an object keyed by period in row order,
// each row an object keyed by column in column order with null for absent
// cells.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range t.periods {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, p.String()); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, name := range t.columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, name); err != nil {
				return nil, err
			}
			v, ok := t.cells[p][name]
			if !ok {
				buf.WriteString("null")
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", p, name, err)
			}
			buf.Write(raw)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(raw)
	buf.WriteByte(':')
	return nil
}

// UnmarshalJSON reads the shape written by MarshalJSON. Columns are taken in
// the order they are first seen and rows are re-sorted chronologically.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	out := NewTable(nil)
	seen := make(map[string]struct{})
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		p, err := period.Parse(key)
		if err != nil {
			return err
		}
		out.addRow(p)

		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		for dec.More() {
			name, err := stringToken(dec)
			if err != nil {
				return err
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out.columns = append(out.columns, name)
			}
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("%s/%s: %w", key, name, err)
			}
			switch v := tok.(type) {
			case nil:
			case float64:
				out.set(p, name, v)
			default:
				return fmt.Errorf("%s/%s: unexpected value %v, %w", key, name, tok, ErrMalformedTable)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	period.Sort(out.periods)
	*t = *out
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v, %w", want, tok, ErrMalformedTable)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected key, got %v, %w", tok, ErrMalformedTable)
	}
	return s, nil
}
