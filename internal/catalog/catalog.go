// Package catalog holds the immutable, ordered questionnaire loaded once at
// process start.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Get for an ordinal outside the catalog. With a
// valid catalog this never happens at runtime.
var ErrNotFound = errors.New("question not found")

//go:embed questions.yaml
var defaultCatalog []byte

// Item is one questionnaire question. Ordinal is its 1-based position in
// the fixed sequence.
type Item struct {
	Ordinal int    `yaml:"ordinal"`
	Text    string `yaml:"text"`
}

// Catalog is the read-only question list. Answers for every item share one
// closed domain 1..MaxValue.
type Catalog struct {
	items    []Item
	maxValue int
}

type catalogFile struct {
	MaxValue  int    `yaml:"max_value"`
	Questions []Item `yaml:"questions"`
}

// Load reads the catalog from the YAML file at path, or the embedded default
// CIVIQ-20 catalog when path is empty. Any validation failure is fatal to
// startup.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Questions, f.MaxValue)
}

// New builds a catalog from items, validating that ordinals are exactly
// 1..len(items) in order with non-empty text.
func New(items []Item, maxValue int) (*Catalog, error) {
	if len(items) == 0 {
		return nil, errors.New("catalog is empty")
	}
	if maxValue < 2 {
		return nil, fmt.Errorf("invalid max answer value %d", maxValue)
	}
	for i, it := range items {
		if it.Ordinal != i+1 {
			return nil, fmt.Errorf("catalog ordinals not contiguous: got %d at position %d", it.Ordinal, i+1)
		}
		if it.Text == "" {
			return nil, fmt.Errorf("question %d has no text", it.Ordinal)
		}
	}
	return &Catalog{items: items, maxValue: maxValue}, nil
}

// Get returns the item at ordinal.
func (c *Catalog) Get(ordinal int) (Item, error) {
	if ordinal < 1 || ordinal > len(c.items) {
		return Item{}, fmt.Errorf("%w: ordinal %d", ErrNotFound, ordinal)
	}
	return c.items[ordinal-1], nil
}

// Count returns the number of questions.
func (c *Catalog) Count() int { return len(c.items) }

// MaxValue returns the top of the answer domain.
func (c *Catalog) MaxValue() int { return c.maxValue }

// Options returns the full answer domain 1..MaxValue.
func (c *Catalog) Options() []int {
	out := make([]int, c.maxValue)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
