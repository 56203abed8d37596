// Package roster holds the lookup view over the user's owned operators.
package roster

import (
	"sort"

	"github.com/bnema/maa-copilot-filter/internal/models"
)

// Index maps operator name to the owned operator. It is immutable once
// built; a new import replaces the whole index.
type Index struct {
	byName map[string]models.Operator
}

// Build creates an index from the full roster. Later entries win on
// duplicate names. Field ranges are not validated.
func Build(ops []models.Operator) *Index {
	idx := &Index{byName: make(map[string]models.Operator, len(ops))}
	for _, op := range ops {
		idx.byName[op.Name] = op
	}
	return idx
}

// Lookup returns the owned operator with the given name
func (i *Index) Lookup(name string) (models.Operator, bool) {
	if i == nil {
		return models.Operator{}, false
	}
	op, ok := i.byName[name]
	return op, ok
}

// Len returns the number of distinct operators
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.byName)
}

// Empty reports whether no roster has been imported
func (i *Index) Empty() bool {
	return i.Len() == 0
}

// Operators returns the roster sorted by name
func (i *Index) Operators() []models.Operator {
	if i == nil {
		return nil
	}
	ops := make([]models.Operator, 0, len(i.byName))
	for _, op := range i.byName {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(a, b int) bool { return ops[a].Name < ops[b].Name })
	return ops
}
