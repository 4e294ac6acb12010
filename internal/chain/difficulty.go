package chain

import "math"

// DifficultyAdjustmentWindow is how many blocks pass between automatic
// difficulty retargets.
const DifficultyAdjustmentWindow = 2016

// TargetBlockTimeSeconds is the desired average spacing between blocks.
const TargetBlockTimeSeconds = 60

// minAdjustFactor and maxAdjustFactor bound how much difficulty can move in
// a single retarget, so one unusually fast or slow window can't swing it to
// an extreme.
const (
	minAdjustFactor = 0.25
	maxAdjustFactor = 4.0
)

// nextDifficulty computes the retargeted difficulty given the window's
// actual elapsed time (seconds) against its expected duration. The
// expected/actual ratio is clamped to [minAdjustFactor, maxAdjustFactor]
// before being applied, and the result never drops below 1. A non-positive
// actual elapsed time means the window's timestamps are degenerate or
// out of order, so difficulty is left unchanged rather than extrapolated
// from a clamped-to-1 duration.
func nextDifficulty(current uint64, actualSeconds, expectedSeconds int64) uint64 {
	if actualSeconds <= 0 {
		return current
	}
	if expectedSeconds <= 0 {
		expectedSeconds = 1
	}

	factor := float64(expectedSeconds) / float64(actualSeconds)
	if factor < minAdjustFactor {
		factor = minAdjustFactor
	}
	if factor > maxAdjustFactor {
		factor = maxAdjustFactor
	}

	next := math.Round(float64(current) * factor)
	if next < 1 {
		next = 1
	}
	return uint64(next)
}

// adjustDifficulty computes the next automatic retarget at a 2016-block
// boundary, using the timestamps of the first and last block in the window
// that just closed. The window's first and last timestamps bracket
// DifficultyAdjustmentWindow-1 block intervals, not DifficultyAdjustmentWindow
// of them, so the expected duration scales by the interval count.
func adjustDifficulty(current uint64, windowStartTimestamp, windowEndTimestamp int64) uint64 {
	actual := windowEndTimestamp - windowStartTimestamp
	expected := int64(DifficultyAdjustmentWindow-1) * TargetBlockTimeSeconds
	return nextDifficulty(current, actual, expected)
}

// RecalculateDifficulty recomputes difficulty on demand from an arbitrary
// chain of timestamps (ascending, tip last), rather than waiting for the
// next automatic 2016-block boundary. This mirrors a one-off "rescan and
// fix my difficulty" operation useful after importing an old chain: the
// window shrinks to whatever history is available, down to a floor of 10
// blocks, and requires at least 11 total blocks to run at all.
func RecalculateDifficulty(current uint64, timestamps []int64) uint64 {
	if len(timestamps) < 11 {
		return current
	}

	window := len(timestamps) - 1
	if window > DifficultyAdjustmentWindow {
		window = DifficultyAdjustmentWindow
	}
	if window < 10 {
		window = 10
	}

	start := timestamps[len(timestamps)-1-window]
	end := timestamps[len(timestamps)-1]
	expected := int64(window) * TargetBlockTimeSeconds
	return nextDifficulty(current, end-start, expected)
}
