package prog

import "math/bits"

// CeilLog2 returns the number of address bits needed to distinguish n items.
// Zero or one item needs no bits.
func CeilLog2(n int) int {
	if n <= 1 {
		return 0
	}

	return bits.Len(uint(n - 1))
}
