package search

import "github.com/google/uuid"

// MaxCompare is the most suppliers a vendor can compare side by side.
const MaxCompare = 3

// CompareSet is an ordered, id-deduplicated set of at most MaxCompare suppliers.
type CompareSet struct {
	items []Supplier
}

func NewCompareSet(items ...Supplier) *CompareSet {
	set := &CompareSet{}
	for _, item := range items {
		set.Add(item)
	}
	return set
}

// Add appends s unless it is already present or the set is full.
func (c *CompareSet) Add(s Supplier) bool {
	if len(c.items) >= MaxCompare || c.Contains(s.ID) {
		return false
	}
	c.items = append(c.items, s)
	return true
}

// Remove drops the supplier with id and reports whether the set shrank.
func (c *CompareSet) Remove(id uuid.UUID) bool {
	for i, item := range c.items {
		if item.ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *CompareSet) Clear() { c.items = nil }

func (c *CompareSet) Len() int { return len(c.items) }

func (c *CompareSet) Contains(id uuid.UUID) bool {
	for _, item := range c.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Items returns a copy of the members in insertion order.
func (c *CompareSet) Items() []Supplier {
	out := make([]Supplier, len(c.items))
	copy(out, c.items)
	return out
}

// IDs returns the member ids in insertion order.
func (c *CompareSet) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.items))
	for _, item := range c.items {
		ids = append(ids, item.ID)
	}
	return ids
}
