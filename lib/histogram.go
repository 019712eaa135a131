package lib

import "fmt"
import "math"
import "sort"
import "strconv"
import "strings"

// HistogramInt64 statistical histogram of int64 samples, like allocation
// sizes. Not safe for concurrent use.
type HistogramInt64 struct {
	// stats
	n      int64
	minval int64
	maxval int64
	sum    int64
	sumsq  float64
	// buckets[0] counts samples below `from`, buckets[len-1] counts
	// samples at or beyond `till`.
	buckets []int64
	// setup
	from  int64
	till  int64
	width int64
}

// NewHistogramInt64 return a new histogram for samples between
// [from,till), bucketed by width.
func NewHistogramInt64(from, till, width int64) *HistogramInt64 {
	if width <= 0 {
		panic(fmt.Errorf("histogram width %v must be positive", width))
	}
	from, till = (from/width)*width, (till/width)*width
	if till < from {
		panic(fmt.Errorf("histogram till(%v) < from(%v)", till, from))
	}
	h := &HistogramInt64{from: from, till: till, width: width}
	h.buckets = make([]int64, ((till-from)/width)+2)
	return h
}

// Add a sample to this histogram.
func (h *HistogramInt64) Add(sample int64) {
	if h.n == 0 || sample < h.minval {
		h.minval = sample
	}
	if h.n == 0 || sample > h.maxval {
		h.maxval = sample
	}
	h.n++
	h.sum += sample
	h.sumsq += float64(sample) * float64(sample)

	switch {
	case sample < h.from:
		h.buckets[0]++
	case sample >= h.till:
		h.buckets[len(h.buckets)-1]++
	default:
		h.buckets[((sample-h.from)/h.width)+1]++
	}
}

// Samples return total number of samples in the set.
func (h *HistogramInt64) Samples() int64 {
	return h.n
}

// Min return minimum value from sample.
func (h *HistogramInt64) Min() int64 {
	return h.minval
}

// Max return maximum value from sample.
func (h *HistogramInt64) Max() int64 {
	return h.maxval
}

// Sum return the sum of all sample values.
func (h *HistogramInt64) Sum() int64 {
	return h.sum
}

// Mean return the average value of all samples.
func (h *HistogramInt64) Mean() int64 {
	if h.n == 0 {
		return 0
	}
	return int64(float64(h.sum) / float64(h.n))
}

// Variance return the squared deviation of samples from their mean.
func (h *HistogramInt64) Variance() int64 {
	if h.n == 0 {
		return 0
	}
	nf, meanf := float64(h.n), float64(h.Mean())
	return int64((h.sumsq / nf) - (meanf * meanf))
}

// SD return the standard deviation.
func (h *HistogramInt64) SD() int64 {
	return int64(math.Sqrt(float64(h.Variance())))
}

// Clone copies the entire instance.
func (h *HistogramInt64) Clone() *HistogramInt64 {
	newh := *h
	newh.buckets = append([]int64(nil), h.buckets...)
	return &newh
}

// Stats return cumulative counts, keyed by the bucket's exclusive upper
// bound.
// Key "+" holds the total number of samples. Trailing empty buckets are
// skipped.
func (h *HistogramInt64) Stats() map[string]int64 {
	m := make(map[string]int64)
	last := len(h.buckets) - 1
	for last >= 0 && h.buckets[last] == 0 {
		last--
	}
	cumm := int64(0)
	for j := 0; j <= last; j++ {
		cumm += h.buckets[j]
		if j == last {
			m["+"] = cumm
			break
		}
		m[strconv.Itoa(int(h.from+(int64(j)*h.width)))] = cumm
	}
	return m
}

// Fullstats includes mean,variance,stddeviance in the Stats().
func (h *HistogramInt64) Fullstats() map[string]interface{} {
	hmap := make(map[string]interface{})
	for k, v := range h.Stats() {
		hmap[k] = v
	}
	return map[string]interface{}{
		"samples":     h.Samples(),
		"min":         h.Min(),
		"max":         h.Max(),
		"mean":        h.Mean(),
		"variance":    h.Variance(),
		"stddeviance": h.SD(),
		"histogram":   hmap,
	}
}

// Logstring return Fullstats as loggable string, keys sorted.
func (h *HistogramInt64) Logstring() string {
	ss := []string{
		fmt.Sprintf(`"max": %v`, h.Max()),
		fmt.Sprintf(`"mean": %v`, h.Mean()),
		fmt.Sprintf(`"min": %v`, h.Min()),
		fmt.Sprintf(`"samples": %v`, h.Samples()),
		fmt.Sprintf(`"stddeviance": %v`, h.SD()),
		fmt.Sprintf(`"variance": %v`, h.Variance()),
	}
	stats, keys := h.Stats(), []int{}
	for k := range stats {
		if k != "+" {
			n, _ := strconv.Atoi(k)
			keys = append(keys, n)
		}
	}
	sort.Ints(keys)
	hs := []string{}
	for _, k := range keys {
		ks := strconv.Itoa(k)
		hs = append(hs, fmt.Sprintf(`"%v": %v`, ks, stats[ks]))
	}
	hs = append(hs, fmt.Sprintf(`"+": %v`, stats["+"]))
	ss = append(ss, `"histogram": {`+strings.Join(hs, ",")+"}")
	return "{" + strings.Join(ss, ",") + "}"
}
