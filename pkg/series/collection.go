package series

import "fmt"

// Collection maps unique series names to series. Names keep the order they
// were added in, which becomes the column order of a merged table.
type Collection struct {
	names        []string
	series       map[string]*Series
	descriptions map[string]string
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		series:       make(map[string]*Series),
		descriptions: make(map[string]string),
	}
}

// Add registers s under name. A nil series is stored as empty.
func (c *Collection) Add(name string, s *Series) error {
	return c.AddWithDescription(name, "", s)
}

// AddWithDescription registers s under name with a human-readable
// description.
func (c *Collection) AddWithDescription(name, description string, s *Series) error {
	if _, ok := c.series[name]; ok {
		return fmt.Errorf("%q, %w", name, ErrDuplicateName)
	}
	if s == nil {
		s = Empty()
	}
	c.names = append(c.names, name)
	c.series[name] = s
	c.descriptions[name] = description
	return nil
}

// Names returns the series names in insertion order.
func (c *Collection) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns the series registered under name.
func (c *Collection) Get(name string) (*Series, bool) {
	s, ok := c.series[name]
	return s, ok
}

// Description returns the description registered under name.
func (c *Collection) Description(name string) string {
	return c.descriptions[name]
}

// Descriptions returns a copy of all descriptions keyed by name.
func (c *Collection) Descriptions() map[string]string {
	out := make(map[string]string, len(c.descriptions))
	for k, v := range c.descriptions {
		out[k] = v
	}
	return out
}

// Len returns the number of series.
func (c *Collection) Len() int {
	return len(c.names)
}
