package reconcile

import "strings"

// =============================================================================
// INDEX - snapshot of existing properties, plus entities created mid-batch
// =============================================================================

// Index holds the property snapshot the matcher resolves against. Exact-key
// strategies use hash lookups; the address strategy scans in load order.
// The hash indexes are a performance refactor only: observable matching
// semantics are identical to a full scan because the strategies are pure
// equality/substring tests.
type Index struct {
	byAPN        map[string]*Property
	byPropertyID map[string]*Property
	ordered      []*Property
}

// NewIndex builds an index over a property snapshot.
func NewIndex(props []Property) *Index {
	ix := &Index{
		byAPN:        make(map[string]*Property, len(props)),
		byPropertyID: make(map[string]*Property, len(props)),
		ordered:      make([]*Property, 0, len(props)),
	}
	for i := range props {
		p := props[i]
		ix.Add(&p)
	}
	return ix
}

// Add makes a property matchable. Called for every snapshot entry at load
// time and again for entities created mid-batch, so later rows in the same
// run reconcile against them.
func (ix *Index) Add(p *Property) {
	if key := strings.TrimSpace(p.APNParcelID); key != "" {
		if _, taken := ix.byAPN[key]; !taken {
			ix.byAPN[key] = p
		}
	}
	if key := strings.TrimSpace(p.PropertyID); key != "" {
		if _, taken := ix.byPropertyID[key]; !taken {
			ix.byPropertyID[key] = p
		}
	}
	ix.ordered = append(ix.ordered, p)
}

// Len returns the number of indexed properties.
func (ix *Index) Len() int {
	return len(ix.ordered)
}

// =============================================================================
// MATCHER
// =============================================================================

// Match resolves a record against the index. Strategies run in fixed
// priority order and the first success wins:
//
//  1. exact APN/parcel identifier match
//  2. exact external system id match
//  3. normalized record address contained in a target's normalized address
//
// Identifier matches are authoritative. The address strategy is last and
// intentionally loose (substring, not equality) to tolerate formatting
// drift between export and store; this recall-over-precision tradeoff is
// inherited behavior, not a bug. Both sides of every comparison must be
// non-empty.
func (ix *Index) Match(rec *ExternalRecord) (*Property, MatchReason) {
	if apn := strings.TrimSpace(rec.APNParcelID); apn != "" {
		if p, ok := ix.byAPN[apn]; ok {
			return p, MatchedByParcel
		}
	}

	if extID := strings.TrimSpace(rec.PropertyID); extID != "" {
		if p, ok := ix.byPropertyID[extID]; ok {
			return p, MatchedByPropertyID
		}
	}

	if addr := NormalizeAddress(rec.FullAddress()); addr != "" {
		for _, p := range ix.ordered {
			if p.FullAddress != "" && strings.Contains(p.FullAddress, addr) {
				return p, MatchedByAddress
			}
		}
	}

	return nil, Unmatched
}
