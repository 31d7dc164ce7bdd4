package forecast

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MarshalJSON writes the forecasts as an object keyed by future period in
// order, each an object of the series that reach that period. Values are
// never null.
func (f *Forecast) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range f.Periods {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, p.String()); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		n := 0
		for _, sf := range f.Series {
			if i >= len(sf.Values) {
				continue
			}
			if n > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, sf.Name); err != nil {
				return nil, err
			}
			if err := writeValue(&buf, sf.Values[i]); err != nil {
				return nil, err
			}
			n++
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type band struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// MarshalBands writes the uncertainty bands keyed by series in column order.
// It returns nil when no series has a band.
func (f *Forecast) MarshalBands() ([]byte, error) {
	var buf bytes.Buffer
	n := 0
	for _, sf := range f.Series {
		if !sf.HasBand() {
			continue
		}
		if n == 0 {
			buf.WriteByte('{')
		} else {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, sf.Name); err != nil {
			return nil, err
		}
		if err := writeValue(&buf, band{Lower: sf.Lower, Upper: sf.Upper}); err != nil {
			return nil, err
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	if err := writeValue(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}
