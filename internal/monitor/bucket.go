// Package monitor implements CPU/RAM/Link resource monitors: each
// discretizes a raw value into one of a fixed bucket set and publishes
// both the raw value and a bucket index into the Registry, following
// the read-old -> remove-old -> write-new -> add-new discipline.
package monitor

import "strconv"

// Bucketer discretizes a raw resource value into one of a fixed,
// ordered bucket set. Bucket is idempotent: Bucket(Bucket(v)) ==
// Bucket(v) for any v already equal to a bucket value.
type Bucketer interface {
	// Bucket returns the bucket value for v, and its string label used
	// as an index-path segment.
	Bucket(v float64) (value int, label string)

	// Buckets returns every bucket value, ascending, for iterating a
	// tolerance ladder or enumerating "at least" queries.
	Buckets() []int
}

// roundNearest picks the nearest entry in buckets to v; ties prefer
// the lower value, per the "equidistant buckets" design decision.
func roundNearest(v float64, buckets []int) int {
	best := buckets[0]
	bestDist := abs(v - float64(best))

	for _, b := range buckets[1:] {
		d := abs(v - float64(b))
		if d < bestDist || (d == bestDist && b < best) {
			best = b
			bestDist = d
		}
	}

	return best
}

// floorBucket picks the largest bucket <= v, or the smallest bucket if
// v is below all of them.
func floorBucket(v float64, buckets []int) int {
	best := buckets[0]

	for _, b := range buckets {
		if float64(b) <= v && b > best {
			best = b
		}
	}

	if v < float64(buckets[0]) {
		return buckets[0]
	}

	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}

// clamp restricts v to [lo, hi], implementing the INVALID_BUCKET
// "clamp, do not reject" behavior.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// PercentBucketer discretizes a 0-100 percentage into {0,25,50,75,100}
// rounded to the nearest 25, used for CPU/RAM availability.
type PercentBucketer struct{}

var percentBuckets = []int{0, 25, 50, 75, 100}

func (PercentBucketer) Bucket(v float64) (int, string) {
	v = clamp(v, 0, 100)
	b := int(roundNearest(v, percentBuckets))

	return b, strconv.Itoa(b)
}

func (PercentBucketer) Buckets() []int {
	return append([]int(nil), percentBuckets...)
}

// CPUCapacityBucketer floors a MIPS value to the largest defined
// bucket <= value.
type CPUCapacityBucketer struct{}

var cpuCapacityBuckets = []int{1, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000, 10000, 100000}

func (CPUCapacityBucketer) Bucket(v float64) (int, string) {
	v = clamp(v, 0, 100000)
	b := floorBucket(v, cpuCapacityBuckets)

	return b, strconv.Itoa(b)
}

func (CPUCapacityBucketer) Buckets() []int {
	return append([]int(nil), cpuCapacityBuckets...)
}

// RAMCapacityBucketer floors a byte count to the largest defined
// bucket <= value.
type RAMCapacityBucketer struct{}

const (
	kb = 1000
	mb = 1000 * kb
	gb = 1000 * mb
)

var ramCapacityBuckets = []int{1 * kb, 100 * kb, 1 * mb, 100 * mb, 1 * gb, 10 * gb}

func (RAMCapacityBucketer) Bucket(v float64) (int, string) {
	v = clamp(v, 0, 10*gb)
	b := floorBucket(v, ramCapacityBuckets)

	return b, strconv.Itoa(b)
}

func (RAMCapacityBucketer) Buckets() []int {
	return append([]int(nil), ramCapacityBuckets...)
}

// BandwidthBucketer snaps a kbit/s value to the nearest labeled
// bucket.
type BandwidthBucketer struct{}

var bandwidthBuckets = []int{100, 1000, 10000, 100000, 1000000}

var bandwidthLabels = map[int]string{
	100:     "100K",
	1000:    "1M",
	10000:   "10M",
	100000:  "100M",
	1000000: "1G",
}

func (BandwidthBucketer) Bucket(v float64) (int, string) {
	v = clamp(v, 0, 1000000)
	b := roundNearest(v, bandwidthBuckets)

	return b, bandwidthLabels[b]
}

func (BandwidthBucketer) Buckets() []int {
	return append([]int(nil), bandwidthBuckets...)
}

// LatencyBucketer snaps a microsecond value to the nearest labeled
// bucket.
type LatencyBucketer struct{}

var latencyBuckets = []int{100, 1000, 10000, 50000, 100000, 1000000}

var latencyLabels = map[int]string{
	100:     "100us",
	1000:    "1ms",
	10000:   "10ms",
	50000:   "50ms",
	100000:  "100ms",
	1000000: "1s",
}

func (LatencyBucketer) Bucket(v float64) (int, string) {
	v = clamp(v, 0, 1000000)
	b := roundNearest(v, latencyBuckets)

	return b, latencyLabels[b]
}

func (LatencyBucketer) Buckets() []int {
	return append([]int(nil), latencyBuckets...)
}
