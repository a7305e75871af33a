package query

// --------------------------------------------------------------------------
// Reducer Registry
// --------------------------------------------------------------------------

// reducerKind identifies one of the closed set of group reducers.
type reducerKind uint8

const (
	reduceMax reducerKind = iota + 1
	reduceMin
	reduceAvg
	reduceEnvelope
)

// reducerByName resolves a reducer name. The registry is closed on
// purpose: reducers define result semantics (including tie-breaks) and
// must not vary per deployment.
func reducerByName(name string) (reducerKind, bool) {
	switch name {
	case "max":
		return reduceMax, true
	case "min":
		return reduceMin, true
	case "avg":
		return reduceAvg, true
	case "envelope":
		return reduceEnvelope, true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// Accumulators
// --------------------------------------------------------------------------

// Provenance identifies where an extreme value came from.
type Provenance struct {
	Batch    string
	Sequence uint64
	Row      int64
}

// colAcc is the running aggregate of one value column within one group.
// Batches are processed in ascending sequence order and rows in file
// order, so "keep the first on ties" yields the earliest-committed
// provenance deterministically.
type colAcc struct {
	seen    bool
	max     float64
	maxProv Provenance
	min     float64
	minProv Provenance
	sum     float64
	count   int64
}

// update folds one value into the accumulator.
func (a *colAcc) update(v float64, prov Provenance) {
	a.sum += v
	a.count++
	if !a.seen {
		a.seen = true
		a.max, a.maxProv = v, prov
		a.min, a.minProv = v, prov
		return
	}
	if v > a.max {
		a.max, a.maxProv = v, prov
	}
	if v < a.min {
		a.min, a.minProv = v, prov
	}
}

// outputColumns returns the result column names contributed by one value
// column under the given reducer. Extremes carry their originating batch
// as a companion column; averages have no single origin and carry none.
func outputColumns(kind reducerKind, col string) []string {
	switch kind {
	case reduceMax:
		return []string{col, col + ":batch"}
	case reduceMin:
		return []string{col, col + ":batch"}
	case reduceAvg:
		return []string{col}
	case reduceEnvelope:
		return []string{col + ":max", col + ":max:batch", col + ":min", col + ":min:batch"}
	default:
		return nil
	}
}

// outputValues returns the result values matching outputColumns.
func outputValues(kind reducerKind, a *colAcc) []any {
	switch kind {
	case reduceMax:
		return []any{a.max, a.maxProv.Batch}
	case reduceMin:
		return []any{a.min, a.minProv.Batch}
	case reduceAvg:
		return []any{a.sum / float64(a.count)}
	case reduceEnvelope:
		return []any{a.max, a.maxProv.Batch, a.min, a.minProv.Batch}
	default:
		return nil
	}
}
