package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for positive integers. b == 0 yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// IsPow2 reports whether v is a power of two (v > 0).
func IsPow2[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// CeilPow2 returns the smallest power of two >= v. CeilPow2(0) is 1.
func CeilPow2[T constraints.Unsigned](v T) T {
	p := T(1)
	for p < v && p != 0 {
		p <<= 1
	}
	return p
}
