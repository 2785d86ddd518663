package entry

import "sort"

// Adjustment is one labeled energy delta produced by a correction scheme.
type Adjustment struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Adjustments is an ordered list of labeled deltas. Order follows the
// configuration order of the scheme that produced it.
type Adjustments []Adjustment

// Map returns the adjustments keyed by label.
func (a Adjustments) Map() map[string]float64 {
	m := make(map[string]float64, len(a))
	for _, adj := range a {
		m[adj.Label] = adj.Value
	}
	return m
}

// Value returns the value recorded for label, 0 when absent.
func (a Adjustments) Value(label string) float64 {
	for _, adj := range a {
		if adj.Label == label {
			return adj.Value
		}
	}
	return 0
}

// Total sums every value.
func (a Adjustments) Total() float64 {
	total := 0.0
	for _, adj := range a {
		total += adj.Value
	}
	return total
}

// Ledger records which adjustments have been applied to an entry:
// correction source → adjustment label → value.
//
// INVARIANTS:
//   - a (source, label) pair is recorded at most once
//   - the sum of every recorded value should equal the entry's Correction
type Ledger map[string]map[string]float64

// Lookup returns the value recorded for (source, label).
func (l Ledger) Lookup(source, label string) (float64, bool) {
	labels, ok := l[source]
	if !ok {
		return 0, false
	}
	v, ok := labels[label]
	return v, ok
}

// Sources returns the recorded source names, sorted.
func (l Ledger) Sources() []string {
	out := make([]string, 0, len(l))
	for src := range l {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// Labels returns the labels recorded under source, sorted.
func (l Ledger) Labels(source string) []string {
	out := make([]string, 0, len(l[source]))
	for label := range l[source] {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Total sums every recorded value in sorted (source, label) order.
func (l Ledger) Total() float64 {
	total := 0.0
	for _, src := range l.Sources() {
		for _, label := range l.Labels(src) {
			total += l[src][label]
		}
	}
	return total
}

// TotalExcept sums every value not recorded under source, in sorted
// order. The result is stable across re-runs that only touch source.
func (l Ledger) TotalExcept(source string) float64 {
	total := 0.0
	for _, src := range l.Sources() {
		if src == source {
			continue
		}
		for _, label := range l.Labels(src) {
			total += l[src][label]
		}
	}
	return total
}

// Len returns the number of recorded (source, label) pairs.
func (l Ledger) Len() int {
	n := 0
	for _, labels := range l {
		n += len(labels)
	}
	return n
}

// Clone returns a deep copy; nil stays nil.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	for src, labels := range l {
		inner := make(map[string]float64, len(labels))
		for label, v := range labels {
			inner[label] = v
		}
		out[src] = inner
	}
	return out
}

// Merge records adjustments under source and returns the sum of the values
// that were newly recorded.
//
// For each adjustment:
//   - label not yet recorded under source: record it
//   - label recorded with the identical value: no-op
//   - label recorded with a different value: conflict
//
// All adjustments are checked before anything is written, so a conflict
// leaves the ledger unchanged.
func (l *Ledger) Merge(source string, adjustments Adjustments) (float64, error) {
	pending := make(map[string]float64, len(adjustments))
	for _, adj := range adjustments {
		if prev, ok := l.Lookup(source, adj.Label); ok {
			if prev != adj.Value {
				return 0, NewConflictError(source, adj.Label, prev, adj.Value)
			}
			continue
		}
		if prev, ok := pending[adj.Label]; ok {
			if prev != adj.Value {
				return 0, NewConflictError(source, adj.Label, prev, adj.Value)
			}
			continue
		}
		pending[adj.Label] = adj.Value
	}

	if len(pending) == 0 {
		return 0, nil
	}
	if *l == nil {
		*l = make(Ledger)
	}
	if (*l)[source] == nil {
		(*l)[source] = make(map[string]float64, len(pending))
	}

	added := 0.0
	for _, adj := range adjustments {
		v, ok := pending[adj.Label]
		if !ok {
			continue
		}
		(*l)[source][adj.Label] = v
		added += v
		delete(pending, adj.Label)
	}
	return added, nil
}
