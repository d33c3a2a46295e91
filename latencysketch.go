package reactivecell

// latencySketch tracks the dispatch-latency distribution LatencyMetrics
// publishes: one five-marker streaming estimator per reported percentile
// (P50/P90/P95/P99), plus the exact running maximum. Each observation is
// O(1) in time and the whole sketch is O(1) in space, versus O(n log n)
// for sorting the raw samples.
//
// The marker update rule is the P² algorithm: Jain, R. and Chlamtac, I.
// (1985). "The P² Algorithm for Dynamic Calculation of Quantiles and
// Histograms Without Storing Observations". Communications of the ACM,
// 28(10), pp. 1076-1085.
//
// Not thread-safe; LatencyMetrics holds its own lock around every call.
type latencySketch struct {
	p50, p90, p95, p99 markerEstimator

	peak float64
	seen int
}

func newLatencySketch() *latencySketch {
	return &latencySketch{
		p50: newMarkerEstimator(0.50),
		p90: newMarkerEstimator(0.90),
		p95: newMarkerEstimator(0.95),
		p99: newMarkerEstimator(0.99),
	}
}

// observe feeds one dispatch latency (nanoseconds, as a float) to every
// percentile estimator and the running maximum.
func (s *latencySketch) observe(x float64) {
	s.seen++
	if s.seen == 1 || x > s.peak {
		s.peak = x
	}
	s.p50.observe(x)
	s.p90.observe(x)
	s.p95.observe(x)
	s.p99.observe(x)
}

// max returns the exact maximum latency observed so far.
func (s *latencySketch) max() float64 {
	if s.seen == 0 {
		return 0
	}
	return s.peak
}

// markerEstimator is a single-percentile P² estimator. Five markers track
// the minimum, the target percentile, its two flanking midpoints, and the
// maximum; each new observation bumps the markers' actual positions and
// nudges the three interior marker heights toward their desired positions.
type markerEstimator struct {
	// target is the estimated percentile, in [0, 1].
	target float64

	height [5]float64 // marker heights: the estimated values
	pos    [5]int     // actual marker positions within the stream
	want   [5]float64 // desired marker positions
	step   [5]float64 // per-observation increments applied to want

	// warmup buffers the first five latencies; the markers are planted
	// from their sorted order once all five have arrived.
	warmup [5]float64
	seen   int
}

func newMarkerEstimator(target float64) markerEstimator {
	if target < 0 {
		target = 0
	}
	if target > 1 {
		target = 1
	}
	return markerEstimator{
		target: target,
		step:   [5]float64{0, target / 2, target, (1 + target) / 2, 1},
	}
}

// observe folds one latency into the estimator in O(1).
func (e *markerEstimator) observe(x float64) {
	e.seen++
	if e.seen <= 5 {
		e.warmup[e.seen-1] = x
		if e.seen == 5 {
			e.plantMarkers()
		}
		return
	}

	// Locate the marker interval containing x, extending the extreme
	// markers when x falls outside them.
	var k int
	switch {
	case x < e.height[0]:
		e.height[0] = x
		k = 0
	case x >= e.height[4]:
		e.height[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.height[k] <= x && x < e.height[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.pos[i]++
	}
	for i := range e.want {
		e.want[i] += e.step[i]
	}

	// Nudge each interior marker a step toward its desired position,
	// preferring the parabolic height fit and falling back to the linear
	// one when the parabola would cross a neighbouring marker.
	for i := 1; i < 4; i++ {
		d := e.want[i] - float64(e.pos[i])
		if (d >= 1 && e.pos[i+1]-e.pos[i] > 1) || (d <= -1 && e.pos[i-1]-e.pos[i] < -1) {
			dir := 1
			if d < 0 {
				dir = -1
			}
			h := e.fitParabola(i, dir)
			if !(e.height[i-1] < h && h < e.height[i+1]) {
				h = e.fitLinear(i, dir)
			}
			e.height[i] = h
			e.pos[i] += dir
		}
	}
}

// plantMarkers seeds the five markers from the sorted warmup buffer.
func (e *markerEstimator) plantMarkers() {
	insertionSort(e.warmup[:])
	for i := range e.height {
		e.height[i] = e.warmup[i]
		e.pos[i] = i
	}
	e.want = [5]float64{0, 2 * e.target, 4 * e.target, 2 + 2*e.target, 4}
}

// fitParabola moves marker i one position in direction dir along the
// piecewise-parabolic curve through it and its two neighbours.
func (e *markerEstimator) fitParabola(i, dir int) float64 {
	d := float64(dir)
	lo := float64(e.pos[i-1])
	mid := float64(e.pos[i])
	hi := float64(e.pos[i+1])

	above := (mid - lo + d) * (e.height[i+1] - e.height[i]) / (hi - mid)
	below := (hi - mid - d) * (e.height[i] - e.height[i-1]) / (mid - lo)
	return e.height[i] + d/(hi-lo)*(above+below)
}

// fitLinear moves marker i one position in direction dir by linear
// interpolation against the neighbour on that side.
func (e *markerEstimator) fitLinear(i, dir int) float64 {
	if dir == 1 {
		return e.height[i] + (e.height[i+1]-e.height[i])/float64(e.pos[i+1]-e.pos[i])
	}
	return e.height[i] - (e.height[i]-e.height[i-1])/float64(e.pos[i]-e.pos[i-1])
}

// estimate returns the current percentile estimate in O(1). Before the
// markers are planted it falls back to the sorted warmup buffer.
func (e *markerEstimator) estimate() float64 {
	if e.seen == 0 {
		return 0
	}
	if e.seen < 5 {
		var sorted [5]float64
		copy(sorted[:], e.warmup[:e.seen])
		insertionSort(sorted[:e.seen])
		return sorted[int(float64(e.seen-1)*e.target)]
	}
	return e.height[2]
}

// insertionSort orders v in place; the sketch only ever sorts five
// elements, where this beats the generality of sort.Float64s.
func insertionSort(v []float64) {
	for i := 1; i < len(v); i++ {
		x := v[i]
		j := i - 1
		for j >= 0 && v[j] > x {
			v[j+1] = v[j]
			j--
		}
		v[j+1] = x
	}
}
