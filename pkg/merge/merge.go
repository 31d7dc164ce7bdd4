// Package merge joins a collection of named series into one table keyed by
// period, ordered chronologically across granularities.
package merge

import (
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
)

// Table is a period × series grid where each cell may be empty.
type Table struct {
	periods []period.Period
	columns []string
	cells   map[period.Period]map[string]float64
}

// Row is one period of a Table with values aligned to Columns. A nil entry
// is an absent observation.
type Row struct {
	Period period.Period
	Values []*float64
}

// Merge unions the periods of every series in c, sorts them, and records
// each series' value per period. Columns follow the collection order.
func Merge(c *series.Collection) *Table {
	t := NewTable(c.Names())
	for _, name := range t.columns {
		s, _ := c.Get(name)
		for _, p := range s.Points() {
			t.set(p.Period, name, p.Value)
		}
	}
	period.Sort(t.periods)
	return t
}

// NewTable returns an empty table with the given columns.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		columns: cols,
		cells:   make(map[period.Period]map[string]float64),
	}
}

func (t *Table) set(p period.Period, column string, value float64) {
	row, ok := t.cells[p]
	if !ok {
		row = make(map[string]float64)
		t.cells[p] = row
		t.periods = append(t.periods, p)
	}
	row[column] = value
}

// addRow registers p without values so it appears as an all-null row.
func (t *Table) addRow(p period.Period) {
	if _, ok := t.cells[p]; ok {
		return
	}
	t.cells[p] = make(map[string]float64)
	t.periods = append(t.periods, p)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.periods)
}

// Periods returns the row keys in chronological order.
func (t *Table) Periods() []period.Period {
	out := make([]period.Period, len(t.periods))
	copy(out, t.periods)
	return out
}

// Columns returns the series names in column order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Value returns the value of column at p.
func (t *Table) Value(p period.Period, column string) (float64, bool) {
	row, ok := t.cells[p]
	if !ok {
		return 0, false
	}
	v, ok := row[column]
	return v, ok
}

// Row returns the row at p and whether it exists.
func (t *Table) Row(p period.Period) (Row, bool) {
	if _, ok := t.cells[p]; !ok {
		return Row{}, false
	}
	return t.row(p), true
}

func (t *Table) row(p period.Period) Row {
	values := make([]*float64, len(t.columns))
	for i, name := range t.columns {
		if v, ok := t.cells[p][name]; ok {
			v := v
			values[i] = &v
		}
	}
	return Row{Period: p, Values: values}
}

// Rows returns every row in chronological order.
func (t *Table) Rows() []Row {
	rows := make([]Row, 0, len(t.periods))
	for _, p := range t.periods {
		rows = append(rows, t.row(p))
	}
	return rows
}

// Column extracts the non-empty cells of one column as a Series in row
// order. It fails when the column mixes granularities.
func (t *Table) Column(name string) (*series.Series, error) {
	points := make([]series.Point, 0, len(t.periods))
	for _, p := range t.periods {
		if v, ok := t.cells[p][name]; ok {
			points = append(points, series.Point{Period: p, Value: v})
		}
	}
	return series.New(points...)
}

// Collection converts the table back into named series.
func (t *Table) Collection() (*series.Collection, error) {
	c := series.NewCollection()
	for _, name := range t.columns {
		s, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := c.Add(name, s); err != nil {
			return nil, err
		}
	}
	return c, nil
}
