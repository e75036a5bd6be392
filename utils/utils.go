package utils

import "golang.org/x/exp/constraints"

func Box[T any](t T) *T                         { return &t }
func IntToBool[I constraints.Integer](i I) bool { return i != 0 }

func BoolToInt[I constraints.Integer](b bool) I {
	if b {
		return 1
	}
	return 0
}

// GrowSlice returns s with room for at least n more elements, reallocating
// to twice the old capacity plus n when the spare capacity is short; the
// length is unchanged. It gives a caller that wants to pre-size a vector a
// single place to do so; the compiler's prototype tables use plain append.
func GrowSlice[T any](s []T, n int) []T {
	if cap(s)-len(s) >= n {
		return s
	}
	newCap := cap(s)*2 + n
	grown := make([]T, len(s), newCap)
	copy(grown, s)
	return grown
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
