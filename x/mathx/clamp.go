package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo < v && v < hi (exclusive, order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v > lo && v < hi
}

// ScaleRound maps v from [inLo, inHi] onto [0, span], rounding half up and
// clamping outside the input range. inLo == inHi yields 0.
func ScaleRound[T constraints.Integer](v, inLo, inHi, span T) T {
	if inHi == inLo {
		return 0
	}
	if v <= inLo {
		return 0
	}
	if v >= inHi {
		return span
	}
	num := int64(v-inLo) * int64(span)
	den := int64(inHi - inLo)
	return T((num + den/2) / den)
}

// AvgInt32 returns the mean of xs, 0 for an empty slice.
func AvgInt32(xs []int32) int32 {
	if len(xs) == 0 {
		return 0
	}
	var sum int64
	for _, x := range xs {
		sum += int64(x)
	}
	return int32(sum / int64(len(xs)))
}
