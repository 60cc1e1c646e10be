package geom

import "math"

// Camera scale bounds. Every scale producer clamps into this range.
const (
	MinScale = 0.15
	MaxScale = 4.0
)

// ScaleSteps lists the named zoom levels walked by stepped zoom-in and
// zoom-out, in ascending order.
var ScaleSteps = [...]float64{0.15, 0.30, 0.50, 0.75, 0.90, 1, 1.25, 1.50, 2, 3, 4}

// wheelExponent maps a doubled, sign-flipped wheel delta onto a log-scale
// exponent. The window is wider than any single wheel event so one tick
// moves the scale a small fraction of a step.
var wheelExponent = Linear(-400, 400, -0.5, 0.5)

// StepUp returns the first named scale strictly greater than scale.
// ok is false when scale already sits at or above the top step.
func StepUp(scale float64) (next float64, ok bool) {
	for _, s := range ScaleSteps {
		if s > scale {
			return s, true
		}
	}
	return scale, false
}

// StepDown returns the last named scale strictly less than scale.
// ok is false when scale already sits at or below the bottom step.
func StepDown(scale float64) (next float64, ok bool) {
	for i := len(ScaleSteps) - 1; i >= 0; i-- {
		if ScaleSteps[i] < scale {
			return ScaleSteps[i], true
		}
	}
	return scale, false
}

// ScaleFromWheel applies a wheel delta to the current scale on the log
// curve, rounds to two decimals, then clamps to [MinScale, MaxScale].
func ScaleFromWheel(scale, delta float64) float64 {
	next := scale * math.Exp(wheelExponent(-2*delta))
	return Clamp(Round2(next), MinScale, MaxScale)
}

// AnchorPan recomputes the pan point so the scene position under the
// cursor is unchanged by a scale change from prev to next. Both
// coordinates are rounded to whole units.
func AnchorPan(px, py, cx, cy, prev, next float64) (x, y float64) {
	x = Round(px + (cx*(next/prev)-cx)/next)
	y = Round(py + (cy*(next/prev)-cy)/next)
	return x, y
}
