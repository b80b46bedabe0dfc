package testutil

// Permutations returns every ordering of items, generated with Heap's
// algorithm. The input is not modified. n items yield n! slices, so keep
// inputs small.
func Permutations[T any](items []T) [][]T {
	work := append([]T(nil), items...)
	out := [][]T{append([]T(nil), work...)}

	c := make([]int, len(work))
	for i := 1; i < len(work); {
		if c[i] < i {
			if i%2 == 0 {
				work[0], work[i] = work[i], work[0]
			} else {
				work[c[i]], work[i] = work[i], work[c[i]]
			}
			out = append(out, append([]T(nil), work...))
			c[i]++
			i = 1
		} else {
			c[i] = 0
			i++
		}
	}
	return out
}

// Splits returns every way to cut items into consecutive non-empty
// batches, preserving order. n items yield 2^(n-1) splits.
func Splits[T any](items []T) [][][]T {
	if len(items) == 0 {
		return [][][]T{{}}
	}
	var out [][][]T
	cuts := len(items) - 1
	for mask := 0; mask < 1<<cuts; mask++ {
		var batches [][]T
		start := 0
		for i := 0; i < cuts; i++ {
			if mask&(1<<i) != 0 {
				batches = append(batches, append([]T(nil), items[start:i+1]...))
				start = i + 1
			}
		}
		batches = append(batches, append([]T(nil), items[start:]...))
		out = append(out, batches)
	}
	return out
}
