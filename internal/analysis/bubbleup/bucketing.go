package bubbleup

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"

	"obsnote/domain/comparison"
)

const (
	// DefaultGroupCount is the number of numeric intervals
	DefaultGroupCount = 5
	// GroupingKeyThreshold is the distinct key count above which numeric
	// distributions are bucketed
	GroupingKeyThreshold = 30
)

// GroupNumericKeys re-buckets two distributions into n equal-width numeric
// intervals over the union of their keys. It only applies when the union
// holds more than GroupingKeyThreshold keys and every key parses as a
// finite number; otherwise both inputs are returned unchanged and grouped
// is false. Totals are preserved and only non-empty intervals appear.
func GroupNumericKeys(sel, base comparison.Distribution, n int) (comparison.Distribution, comparison.Distribution, bool) {
	if n <= 0 {
		n = DefaultGroupCount
	}

	keys := unionKeys(sel, base)
	if len(keys) <= GroupingKeyThreshold {
		return sel, base, false
	}

	values := make(map[string]float64, len(keys))
	nums := make([]float64, 0, len(keys))
	integral := true
	for _, k := range keys {
		v, err := strconv.ParseFloat(k, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return sel, base, false
		}
		if v != math.Trunc(v) {
			integral = false
		}
		values[k] = v
		nums = append(nums, v)
	}

	lo, _ := stats.Min(nums)
	hi, _ := stats.Max(nums)
	b := newBuckets(lo, hi, n, integral)

	return b.regroup(sel, values), b.regroup(base, values), true
}

type buckets struct {
	min, max float64
	width    float64
	labels   []string
}

// newBuckets splits [lo, hi] into at most n intervals. A rounded-up integer
// width can cover the range in fewer than n steps, so the count follows the
// width and the last interval always closes at hi.
func newBuckets(lo, hi float64, n int, integral bool) *buckets {
	width := (hi - lo) / float64(n)
	if integral {
		width = math.Ceil(width)
	}
	b := &buckets{min: lo, max: hi, width: width}
	if width == 0 {
		b.labels = []string{label(lo, hi)}
		return b
	}

	count := n
	if integral {
		count = int(math.Min(float64(n), math.Max(1, math.Ceil((hi-lo)/width))))
	}
	b.labels = make([]string, count)
	for i := 0; i < count; i++ {
		lower := lo + float64(i)*width
		upper := lower + width
		if i == count-1 || upper > hi {
			upper = hi
		}
		b.labels[i] = label(lower, upper)
	}
	return b
}

func (b *buckets) index(v float64) int {
	if b.width == 0 {
		return 0
	}
	i := int(math.Floor((v - b.min) / b.width))
	if i < 0 {
		return 0
	}
	if i >= len(b.labels) {
		return len(b.labels) - 1
	}
	return i
}

func (b *buckets) regroup(dist comparison.Distribution, values map[string]float64) comparison.Distribution {
	out := make(comparison.Distribution)
	for k, count := range dist {
		out[b.labels[b.index(values[k])]] += count
	}
	return out
}

func label(lower, upper float64) string {
	return fmt.Sprintf("%.1f-%.1f", lower, upper)
}

func unionKeys(a, b comparison.Distribution) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
