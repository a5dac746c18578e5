package sal

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

//NeverSeen marks a category that has no previous occurrence yet.
const NeverSeen = -1

//Catalog enumerates the category set up front so counters live in a fixed slice
//instead of a dynamically keyed map. Categories met during a pass but absent from
//the catalog are appended, never an error.
type Catalog struct {
	names []string
	index map[string]int
}

//NewCatalog declares the known categories in order.
func NewCatalog(names []string) *Catalog {
	catalog := &Catalog{index: make(map[string]int)}
	for _, name := range names {
		catalog.Add(name)
	}
	return catalog
}

//Add registers a category and returns its index. Adding a known category is a no-op.
func (catalog *Catalog) Add(name string) int {
	if ind, seen := catalog.index[name]; seen {
		return ind
	}
	ind := len(catalog.names)
	catalog.names = append(catalog.names, name)
	catalog.index[name] = ind
	return ind
}

//Index returns the position of a category in the catalog.
func (catalog *Catalog) Index(name string) (int, bool) {
	ind, seen := catalog.index[name]
	return ind, seen
}

//Size returns the number of registered categories.
func (catalog *Catalog) Size() int {
	return len(catalog.names)
}

//Names returns the registered categories in catalog order.
func (catalog *Catalog) Names() []string {
	return append([]string(nil), catalog.names...)
}

//IntervalEvent is the derived record for one position of the event sequence:
//how many other events passed since this position's category was last chosen.
type IntervalEvent struct {
	Position int
	Category string
	Interval int
	First    bool
}

//BuildIntervals walks the chronological event sequence once and emits, per position,
//the number of intervening events since that category's previous occurrence. The first
//occurrence of every category yields the NeverSeen interval with First set. After
//emitting, every other category's counter is bumped by one turn and the triggering
//category's counter is reset to zero. The pass is deterministic given the input order.
func BuildIntervals(events []string, catalog *Catalog) ([]IntervalEvent, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("empty event sequence")
	}
	if catalog == nil {
		catalog = NewCatalog(nil)
	}

	counters := newCounters(catalog.Size())
	result := make([]IntervalEvent, len(events))

	for position, category := range events {
		ind := catalog.Add(category)
		for len(counters) < catalog.Size() {
			counters = append(counters, NeverSeen)
		}

		current := IntervalEvent{Position: position, Category: category}
		if counters[ind] == NeverSeen {
			current.Interval = NeverSeen
			current.First = true
		} else {
			current.Interval = counters[ind]
		}
		result[position] = current

		for other := range counters {
			if other != ind && counters[other] != NeverSeen {
				counters[other]++
			}
		}
		counters[ind] = 0
	}

	return result, nil
}

//BuildSnapshotMatrix emits, for every position, the full vector of all categories'
//turns-since-last-seen counters as they stood before that position's event was
//processed. One row per position, one column per catalog category; never seen
//categories hold the NeverSeen sentinel. The category set is collected in a first
//pass so the matrix width is fixed before any row is written.
func BuildSnapshotMatrix(events []string, catalog *Catalog) (*mat.Dense, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("empty event sequence")
	}
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	for _, category := range events {
		catalog.Add(category)
	}

	width := catalog.Size()
	counters := newCounters(width)
	snapshots := mat.NewDense(len(events), width, nil)

	for position, category := range events {
		for q := 0; q < width; q++ {
			snapshots.Set(position, q, float64(counters[q]))
		}
		advanceCounters(counters, mustIndex(catalog, category))
	}

	return snapshots, nil
}

//IntervalRegressionTable assembles the dataset that predicts the target category's
//interselection time from every other category's current counter. One row per
//non-first occurrence of the target: the predictors are the other categories'
//counters at that position, the response is the realized interval.
func IntervalRegressionTable(events []string, catalog *Catalog, target string) (*mat.Dense, []float64, error) {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	intervals, err := BuildIntervals(events, catalog)
	if err != nil {
		return nil, nil, err
	}
	targetInd, seen := catalog.Index(target)
	if !seen {
		return nil, nil, fmt.Errorf("target category %q never occurs in the sequence", target)
	}

	snapshots, err := BuildSnapshotMatrix(events, catalog)
	if err != nil {
		return nil, nil, err
	}

	width := catalog.Size()
	if width < 2 {
		return nil, nil, fmt.Errorf("no categories besides %q occur in the sequence, nothing to predict from", target)
	}
	rows := make([]int, 0)
	responses := make([]float64, 0)
	for _, event := range intervals {
		if event.Category == target && !event.First {
			rows = append(rows, event.Position)
			responses = append(responses, float64(event.Interval))
		}
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("target category %q has no repeated occurrences", target)
	}

	predictors := mat.NewDense(len(rows), width-1, nil)
	for p, position := range rows {
		col := 0
		for q := 0; q < width; q++ {
			if q == targetInd {
				continue
			}
			predictors.Set(p, col, snapshots.At(position, q))
			col++
		}
	}

	return predictors, responses, nil
}

//FitLeastSquares solves the over-determined system predictors * weights = responses
//in the least squares sense.
func FitLeastSquares(predictors *mat.Dense, responses []float64) ([]float64, error) {
	h, w := predictors.Dims()
	if h != len(responses) {
		return nil, fmt.Errorf("predictor height %d does not match response length %d", h, len(responses))
	}
	if h < w {
		return nil, fmt.Errorf("%d rows are not enough to fit %d weights", h, w)
	}

	rhs := mat.NewDense(h, 1, responses)
	var out mat.Dense
	if err := out.Solve(predictors, rhs); err != nil {
		return nil, err
	}

	weights := make([]float64, w)
	for q := 0; q < w; q++ {
		weights[q] = out.At(q, 0)
	}
	return weights, nil
}

//newCounters initializes every category counter to the NeverSeen sentinel.
func newCounters(size int) []int {
	counters := make([]int, size)
	for ind := range counters {
		counters[ind] = NeverSeen
	}
	return counters
}

//advanceCounters applies one event: every other seen category ages by one turn and
//the triggering category's counter resets to zero.
func advanceCounters(counters []int, ind int) {
	for other := range counters {
		if other != ind && counters[other] != NeverSeen {
			counters[other]++
		}
	}
	counters[ind] = 0
}

//mustIndex looks up a category that is known to be registered.
func mustIndex(catalog *Catalog, name string) int {
	ind, seen := catalog.Index(name)
	if !seen {
		log.Panicf("category %q is missing from the catalog", name)
	}
	return ind
}
