package backup

import "fmt"

// Plan is an ordered, immutable list of backup records. List order is the
// order in which the restoring daemon must apply them.
type Plan struct {
	entries []Entry
}

// NewPlan deep-copies entries into a Plan. Every entry must carry a domain.
func NewPlan(entries []Entry) (*Plan, error) {
	for i, e := range entries {
		if e.Meta().Domain == "" {
			return nil, fmt.Errorf("entry %d (%s %q): %w", i, e.Kind(), e.Meta().RelativePath, ErrEmptyDomain)
		}
	}
	copied := make([]Entry, len(entries))
	for i, e := range entries {
		copied[i] = clone(e)
	}
	return &Plan{entries: copied}, nil
}

// Entries returns a deep copy of the plan's records in application order.
func (p *Plan) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = clone(e)
	}
	return out
}

func (p *Plan) Len() int { return len(p.entries) }

// Last returns the final record, or nil for an empty plan.
func (p *Plan) Last() Entry {
	if len(p.entries) == 0 {
		return nil
	}
	return clone(p.entries[len(p.entries)-1])
}
