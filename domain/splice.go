package domain

// Splice moves the element at from so that it takes the slot currently held
// by the element at to. The element is removed first, so a move to the right
// lands at to-1. It returns a new slice and leaves list untouched. Out of range
// indices return a copy of list unchanged.
func Splice[T any](list []T, from, to int) []T {
	out := make([]T, len(list))
	copy(out, list)
	if from < 0 || to < 0 || from >= len(list) || to >= len(list) || from == to {
		return out
	}

	moved := out[from]
	out = append(out[:from], out[from+1:]...)

	insert := spliceTarget(from, to)
	out = append(out, moved)
	copy(out[insert+1:], out[insert:len(out)-1])
	out[insert] = moved
	return out
}

// spliceTarget returns the index the moved element ends up at.
func spliceTarget(from, to int) int {
	if from < to {
		return to - 1
	}
	return to
}
