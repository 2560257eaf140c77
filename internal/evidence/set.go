package evidence

import "github.com/aporia-systems/aporia/internal/types"

// Set is an ordered, content-hash-keyed collection of evidence items.
// Insertion order is preserved (spec.md I5, §4.2) so aggregation is
// deterministic. The zero value is not usable; use New.
type Set struct {
	mode  types.DedupMode
	order []types.EvidenceID
	items map[types.EvidenceID]types.EvidenceItem
	// srcByID tracks the set of sources that have submitted each derived ID,
	// needed to enforce "identical source re-submissions are always
	// rejected" even under corroboration mode.
	srcByID map[types.EvidenceID]map[types.AgentID]bool
}

// New creates an empty evidence set with the given dedup mode.
func New(mode types.DedupMode) *Set {
	return &Set{
		mode:    mode,
		items:   make(map[types.EvidenceID]types.EvidenceItem),
		srcByID: make(map[types.EvidenceID]map[types.AgentID]bool),
	}
}

// Insert adds item, enforcing the set's dedup policy. It returns a new Set
// (the receiver is never mutated) and whether the item was accepted.
func (s *Set) Insert(item types.EvidenceItem) (*Set, bool) {
	out := s.clone()

	srcs, known := out.srcByID[item.ID]
	if known && srcs[item.Src] {
		// Identical source re-submission: always rejected, in both modes.
		return out, false
	}

	if known {
		switch out.mode {
		case types.DedupCorroboration:
			// New source observing the same derived content: retained.
		default: // types.DedupStrict and unset
			return out, false
		}
	}

	out.items[item.ID] = item.Clone()
	out.order = append(out.order, item.ID)
	if !known {
		out.srcByID[item.ID] = map[types.AgentID]bool{item.Src: true}
	} else {
		out.srcByID[item.ID][item.Src] = true
	}
	return out, true
}

// Union returns a new Set containing every item of s followed by every item
// of other not already present (by derived ID), applying s's dedup policy to
// the merge. Used by Merge.
func (s *Set) Union(other *Set) *Set {
	out := s.clone()
	for _, id := range other.order {
		item := other.items[id]
		var ok bool
		out, ok = out.Insert(item)
		_ = ok // Union keeps whatever the policy allows; no signal needed.
	}
	return out
}

// Filter returns a new Set containing only items for which pred returns true.
// Relative insertion order is preserved.
func (s *Set) Filter(pred func(types.EvidenceItem) bool) *Set {
	out := &Set{
		mode:    s.mode,
		items:   make(map[types.EvidenceID]types.EvidenceItem),
		srcByID: make(map[types.EvidenceID]map[types.AgentID]bool),
	}
	for _, id := range s.order {
		item := s.items[id]
		if pred(item) {
			out.order = append(out.order, id)
			out.items[id] = item
			srcs := make(map[types.AgentID]bool, len(s.srcByID[id]))
			for src := range s.srcByID[id] {
				srcs[src] = true
			}
			out.srcByID[id] = srcs
		}
	}
	return out
}

// ByKind returns the items of the given kind, in insertion order.
func (s *Set) ByKind(kind types.EvidenceKind) []types.EvidenceItem {
	var out []types.EvidenceItem
	for _, id := range s.order {
		if item := s.items[id]; item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// All returns every item, in insertion order.
func (s *Set) All() []types.EvidenceItem {
	out := make([]types.EvidenceItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// IsEmpty reports whether the set has no items.
func (s *Set) IsEmpty() bool { return len(s.order) == 0 }

// Len reports the number of items.
func (s *Set) Len() int { return len(s.order) }

// Contains reports whether an item with the given derived ID is present.
func (s *Set) Contains(id types.EvidenceID) bool {
	_, ok := s.items[id]
	return ok
}

func (s *Set) clone() *Set {
	out := &Set{
		mode:    s.mode,
		order:   append([]types.EvidenceID(nil), s.order...),
		items:   make(map[types.EvidenceID]types.EvidenceItem, len(s.items)),
		srcByID: make(map[types.EvidenceID]map[types.AgentID]bool, len(s.srcByID)),
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.srcByID {
		srcs := make(map[types.AgentID]bool, len(v))
		for src := range v {
			srcs[src] = true
		}
		out.srcByID[k] = srcs
	}
	return out
}
