package util

import "math/rand/v2"

// RandomItem returns one uniformly chosen element of items, or the zero value
// for an empty slice.
func RandomItem[T any](items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[rand.IntN(len(items))]
}
