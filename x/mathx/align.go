package mathx

import "golang.org/x/exp/constraints"

// IsPow2 reports whether x is a non-zero power of two.
func IsPow2[T constraints.Unsigned](x T) bool {
	return x != 0 && x&(x-1) == 0
}

// IsAligned reports whether v is a multiple of align. align must be a power of two.
func IsAligned[T constraints.Unsigned](v, align T) bool {
	return v&(align-1) == 0
}

// AlignDown rounds v down to a multiple of align (power of two).
func AlignDown[T constraints.Unsigned](v, align T) T {
	return v &^ (align - 1)
}

// AlignUp rounds v up to a multiple of align (power of two).
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}

// Log2 returns floor(log2(x)) for x > 0, and 0 for x == 0.
func Log2[T constraints.Unsigned](x T) uint {
	var n uint
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}
